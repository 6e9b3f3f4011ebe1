package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.File)
	require.Equal(t, "config/profiles", cfg.ProfilesDir)
	require.Equal(t, "config/profiles/defaults", cfg.ProfilesDefaultsDir)
	require.Equal(t, "runs", cfg.RunsDir)
	require.Equal(t, "runs/history.db", cfg.HistoryPath)
	require.Equal(t, DefaultRenderer, cfg.RendererCommand)
	require.Equal(t, 750*time.Millisecond, cfg.SettleDelay)
	require.Equal(t, Log{Level: "info", Format: "text", Output: "stderr"}, cfg.Log)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFileAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheetbatch.yaml")
	body := `runs_dir: /data/runs
renderer:
  command: my-render
reconcile:
  settle_delay: 2s
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SHEETBATCH_LOG_FORMAT", "json")
	t.Setenv("SHEETBATCH_RENDERER_COMMAND", "env-render")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.File)
	require.Equal(t, "/data/runs", cfg.RunsDir)
	require.Equal(t, "env-render", cfg.RendererCommand)
	require.Equal(t, 2*time.Second, cfg.SettleDelay)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "config/profiles", cfg.ProfilesDir)
}

func TestLoadRejectsBadSettleDelay(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHEETBATCH_RECONCILE_SETTLE_DELAY", "soon")

	_, err := Load("")
	require.ErrorContains(t, err, "settle_delay")
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"750ms", 750 * time.Millisecond},
		{"1.5s", 1500 * time.Millisecond},
		{"200", 200 * time.Millisecond},
	}
	for _, tc := range cases {
		got, err := parseDuration(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
	_, err := parseDuration("-1s")
	require.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "sheetbatch.yaml")

	created, err := WriteDefault(path)
	require.NoError(t, err)
	require.True(t, created)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "runs", cfg.RunsDir)
	require.Equal(t, 750*time.Millisecond, cfg.SettleDelay)

	created, err = WriteDefault(path)
	require.NoError(t, err)
	require.False(t, created)
}
