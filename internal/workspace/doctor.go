// Package workspace runs preflight checks and creates the on-disk layout
// a batch needs: profile directories, the runs directory, the history
// database and the config file.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"sheetbatch/internal/config"
	"sheetbatch/internal/history"
	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
	"sheetbatch/internal/profile"
	"sheetbatch/internal/runstore"
)

type DoctorOptions struct {
	Config config.Config
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitOptions struct {
	Config     config.Config
	ConfigPath string
	Logger     logrus.FieldLogger
}

type InitResult struct {
	ConfigPath      string       `json:"config_path"`
	RunsDir         string       `json:"runs_dir"`
	ProfilesDir     string       `json:"profiles_dir"`
	DefaultsDir     string       `json:"defaults_dir"`
	CreatedConfig   bool         `json:"created_config"`
	CreatedRunsDir  bool         `json:"created_runs_dir"`
	CreatedProfiles bool         `json:"created_profiles_dir"`
	DefaultProfile  string       `json:"default_profile,omitempty"`
	DoctorResult    DoctorResult `json:"doctor"`
}

func Doctor(opts DoctorOptions) (DoctorResult, error) {
	cfg := opts.Config
	checks := make([]DoctorCheck, 0, 5)

	dep := host.DependencyStatus(cfg.RendererCommand)
	renderer := firstNonEmpty(cfg.RendererCommand, host.DefaultRendererCommand)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:" + renderer,
		OK:      dep.RendererFound,
		Message: dependencyMessage(dep.RendererFound, dep.RendererPath, renderer),
	})

	for _, d := range []struct{ name, path string }{
		{"directory:runs", firstNonEmpty(cfg.RunsDir, "runs")},
		{"directory:profiles", firstNonEmpty(cfg.ProfilesDir, "config/profiles")},
	} {
		ok, msg := ensureWritableDir(d.path)
		checks = append(checks, DoctorCheck{Name: d.name, OK: ok, Message: msg})
	}

	if p := strings.TrimSpace(cfg.HistoryPath); p != "" {
		ok, msg := checkHistory(p)
		checks = append(checks, DoctorCheck{Name: "database:history", OK: ok, Message: msg})
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}, nil
}

// Init creates the workspace layout and writes the default profile into
// the profile store when the store is empty.
func Init(opts InitOptions) (InitResult, error) {
	cfg := opts.Config
	runsDir := firstNonEmpty(cfg.RunsDir, "runs")
	profilesDir := firstNonEmpty(cfg.ProfilesDir, "config/profiles")
	defaultsDir := strings.TrimSpace(cfg.ProfilesDefaultsDir)
	configPath := firstNonEmpty(opts.ConfigPath, config.DefaultPath)

	res := InitResult{
		ConfigPath:  configPath,
		RunsDir:     runsDir,
		ProfilesDir: profilesDir,
		DefaultsDir: defaultsDir,
	}
	res.CreatedRunsDir = missing(runsDir)
	if err := runstore.Mkdir(runsDir); err != nil {
		return InitResult{}, err
	}
	res.CreatedProfiles = missing(profilesDir)
	if err := runstore.Mkdir(profilesDir); err != nil {
		return InitResult{}, err
	}
	if defaultsDir != "" {
		if err := runstore.Mkdir(defaultsDir); err != nil {
			return InitResult{}, err
		}
	}

	created, err := config.WriteDefault(configPath)
	if err != nil {
		return InitResult{}, err
	}
	res.CreatedConfig = created

	store := profile.NewStore(profilesDir, defaultsDir, opts.Logger)
	if _, err := store.Load(); err != nil {
		return InitResult{}, err
	}
	if store.SourcePath(model.DefaultProfileName) == "" {
		path, err := store.Save(model.DefaultSettings())
		if err != nil {
			return InitResult{}, err
		}
		res.DefaultProfile = path
	}

	doc, err := Doctor(DoctorOptions{Config: cfg})
	if err != nil {
		return InitResult{}, err
	}
	res.DoctorResult = doc
	return res, nil
}

func checkHistory(path string) (bool, string) {
	st, err := history.Open(path)
	if err != nil {
		return false, err.Error()
	}
	_ = st.Close()
	return true, "open " + path
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "sheetbatch-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable " + filepath.Clean(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
