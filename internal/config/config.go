// Package config loads the layered application configuration: built-in
// defaults, an optional YAML file, then SHEETBATCH_* environment variables.
// Command-line flags are layered on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPath     = "config/sheetbatch.yaml"
	EnvPrefix       = "SHEETBATCH"
	DefaultRenderer = "sheet-render"
)

// Config is the resolved application configuration.
type Config struct {
	ProfilesDir         string        `json:"profiles_dir" yaml:"profiles_dir"`
	ProfilesDefaultsDir string        `json:"profiles_defaults_dir" yaml:"profiles_defaults_dir"`
	RunsDir             string        `json:"runs_dir" yaml:"runs_dir"`
	HistoryPath         string        `json:"history_path" yaml:"history_path"`
	RendererCommand     string        `json:"renderer_command" yaml:"renderer_command"`
	SettleDelay         time.Duration `json:"settle_delay" yaml:"settle_delay"`
	Log                 Log           `json:"log" yaml:"log"`
	// File is the config file that was read, empty when none was found.
	File string `json:"file,omitempty" yaml:"-"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profiles.dir", "config/profiles")
	v.SetDefault("profiles.defaults_dir", "config/profiles/defaults")
	v.SetDefault("runs_dir", "runs")
	v.SetDefault("history.path", "runs/history.db")
	v.SetDefault("renderer.command", DefaultRenderer)
	v.SetDefault("reconcile.settle_delay", "750ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path. An explicit path must exist; the
// default path is optional.
func Load(path string) (Config, error) {
	v := New()
	explicit := strings.TrimSpace(path) != ""
	file := firstNonEmpty(path, DefaultPath)
	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	read := ""
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		read = v.ConfigFileUsed()
	}

	cfg, err := fromViper(v)
	if err != nil {
		return Config{}, err
	}
	cfg.File = read
	return cfg, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	delay, err := parseDuration(v.GetString("reconcile.settle_delay"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid reconcile.settle_delay: %w", err)
	}
	return Config{
		ProfilesDir:         strings.TrimSpace(v.GetString("profiles.dir")),
		ProfilesDefaultsDir: strings.TrimSpace(v.GetString("profiles.defaults_dir")),
		RunsDir:             strings.TrimSpace(v.GetString("runs_dir")),
		HistoryPath:         strings.TrimSpace(v.GetString("history.path")),
		RendererCommand:     firstNonEmpty(v.GetString("renderer.command"), DefaultRenderer),
		SettleDelay:         delay,
		Log: Log{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
			Output: strings.TrimSpace(v.GetString("log.output")),
		},
	}, nil
}

// parseDuration accepts Go durations and bare millisecond counts.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration %s", raw)
		}
		return d, nil
	}
	d, err := time.ParseDuration(raw + "ms")
	if err != nil || d < 0 {
		return 0, fmt.Errorf("cannot parse %q as a duration", raw)
	}
	return d, nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// WriteDefault writes the default settings to path unless a file exists there.
func WriteDefault(path string) (bool, error) {
	path = firstNonEmpty(path, DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return false, fmt.Errorf("write config %s: %w", path, err)
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
