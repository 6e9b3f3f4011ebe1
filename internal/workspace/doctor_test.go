package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"sheetbatch/internal/config"
	"sheetbatch/internal/logging"
	"sheetbatch/internal/model"
	"sheetbatch/internal/profile"
)

func testConfig(root string) config.Config {
	return config.Config{
		ProfilesDir:         filepath.Join(root, "config", "profiles"),
		ProfilesDefaultsDir: filepath.Join(root, "config", "profiles", "defaults"),
		RunsDir:             filepath.Join(root, "runs"),
		HistoryPath:         filepath.Join(root, "runs", "history.db"),
		RendererCommand:     "sheet-render",
	}
}

func installFakeRenderer(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := "#!/usr/bin/env bash\nexit 0\n"
	if err := os.WriteFile(filepath.Join(dir, "sheet-render"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}

func TestDoctorReportsMissingRenderer(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATH", filepath.Join(tmp, "empty-bin"))

	res, err := Doctor(DoctorOptions{Config: testConfig(tmp)})
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatalf("expected doctor to fail without renderer: %+v", res)
	}
	if len(res.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(res.Checks))
	}
	if res.Checks[0].Name != "dependency:sheet-render" || res.Checks[0].OK {
		t.Fatalf("unexpected dependency check: %+v", res.Checks[0])
	}
	for _, c := range res.Checks[1:] {
		if !c.OK {
			t.Fatalf("expected %s to pass: %s", c.Name, c.Message)
		}
	}
}

func TestInitCreatesLayoutAndDefaultProfile(t *testing.T) {
	tmp := t.TempDir()
	installFakeRenderer(t, filepath.Join(tmp, "bin"))
	cfg := testConfig(tmp)
	configPath := filepath.Join(tmp, "config", "sheetbatch.yaml")

	res, err := Init(InitOptions{Config: cfg, ConfigPath: configPath, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if !res.CreatedConfig || !res.CreatedRunsDir || !res.CreatedProfiles {
		t.Fatalf("expected fresh workspace to be created: %+v", res)
	}
	if !res.DoctorResult.OK {
		t.Fatalf("expected doctor to pass after init: %+v", res.DoctorResult)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if res.DefaultProfile == "" {
		t.Fatal("expected default profile path")
	}

	store := profile.NewStore(cfg.ProfilesDir, cfg.ProfilesDefaultsDir, logging.Discard())
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if store.SourcePath(model.DefaultProfileName) != res.DefaultProfile {
		t.Fatalf("default profile not loaded from %s", res.DefaultProfile)
	}

	again, err := Init(InitOptions{Config: cfg, ConfigPath: configPath, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if again.CreatedConfig || again.CreatedRunsDir || again.CreatedProfiles || again.DefaultProfile != "" {
		t.Fatalf("expected init to be idempotent: %+v", again)
	}
}
