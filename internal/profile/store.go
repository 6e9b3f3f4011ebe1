package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"sheetbatch/internal/model"
	"sheetbatch/internal/runstore"
)

const profileExt = ".yaml"

var ErrProfileNotFound = errors.New("profile not found")

type entry struct {
	settings model.ExportSettings
	path     string
}

// Store keeps every known profile in memory. Profiles under the defaults
// root load first; profiles under the store root override them by
// case-insensitive name. Only the store root is written.
type Store struct {
	root         string
	defaultsRoot string
	log          logrus.FieldLogger

	mu       sync.RWMutex
	profiles map[string]entry
}

func NewStore(root, defaultsRoot string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		root:         root,
		defaultsRoot: defaultsRoot,
		log:          log,
		profiles:     make(map[string]entry),
	}
}

func (s *Store) Root() string { return s.root }

// Load rescans both roots. Unreadable profile files are skipped and
// returned as FormatErrors; the error result is reserved for roots that
// exist but cannot be listed. The built-in Default profile is present
// when no file defines it.
func (s *Store) Load() ([]error, error) {
	loaded := make(map[string]entry)
	var skipped []error
	for _, dir := range []string{s.defaultsRoot, s.root} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		paths, err := listProfileFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			settings, err := readProfile(path)
			if err != nil {
				s.log.WithError(err).WithField("path", path).Warn("skipping unreadable profile")
				skipped = append(skipped, err)
				continue
			}
			key := nameKey(settings.Name)
			if prev, ok := loaded[key]; ok {
				s.log.WithFields(logrus.Fields{
					"profile":    settings.Name,
					"overridden": prev.path,
					"by":         path,
				}).Debug("profile overridden")
			}
			loaded[key] = entry{settings: settings, path: path}
		}
	}
	if _, ok := loaded[nameKey(model.DefaultProfileName)]; !ok {
		loaded[nameKey(model.DefaultProfileName)] = entry{settings: model.DefaultSettings()}
	}

	s.mu.Lock()
	s.profiles = loaded
	s.mu.Unlock()
	return skipped, nil
}

// List returns profiles sorted by name.
func (s *Store) List() []model.ExportSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ExportSettings, 0, len(s.profiles))
	for _, e := range s.profiles {
		out = append(out, e.settings)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (s *Store) Get(name string) (model.ExportSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.profiles[nameKey(name)]
	if !ok {
		return model.ExportSettings{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return e.settings, nil
}

// SourcePath is the file a profile was loaded from, or "" for the
// built-in default.
func (s *Store) SourcePath(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[nameKey(name)].path
}

// Path is where Save writes the named profile.
func (s *Store) Path(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "profile"
	}
	return filepath.Join(s.root, base+profileExt)
}

// Save writes the whole profile to the store root.
func (s *Store) Save(settings model.ExportSettings) (string, error) {
	settings = model.Normalize(settings)
	if settings.Name == "" {
		return "", fmt.Errorf("profile name is required")
	}
	path := s.Path(settings.Name)
	if existing, err := readProfile(path); err == nil && nameKey(existing.Name) != nameKey(settings.Name) {
		return "", fmt.Errorf("save profile %s: %s already holds profile %q", settings.Name, path, existing.Name)
	}
	if err := runstore.WriteYAML(path, settings); err != nil {
		return "", fmt.Errorf("save profile %s: %w", settings.Name, err)
	}

	s.mu.Lock()
	s.profiles[nameKey(settings.Name)] = entry{settings: settings, path: path}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"profile": settings.Name, "path": path}).Info("profile saved")
	return path, nil
}

// Delete removes a profile file from the store root and reloads, so a
// default with the same name becomes visible again.
func (s *Store) Delete(name string) error {
	s.mu.RLock()
	e, ok := s.profiles[nameKey(name)]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if e.path == "" || !withinDir(s.root, e.path) {
		return fmt.Errorf("delete profile %s: not stored under %s", name, s.root)
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile %s: %w", name, err)
	}
	if _, err := s.Load(); err != nil {
		return fmt.Errorf("reload profiles after delete: %w", err)
	}
	return nil
}

// ImportResult lists what Import saved and what it skipped.
type ImportResult struct {
	Saved   []string `json:"saved"`
	Skipped []string `json:"skipped,omitempty"`
}

// Import converts an interchange document and saves every profile that
// converts cleanly.
func (s *Store) Import(path string) (ImportResult, error) {
	doc, err := ParseInterchangeFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	converted, errs := Convert(doc, path)
	var result ImportResult
	for _, err := range errs {
		s.log.WithError(err).Warn("skipping interchange profile")
		result.Skipped = append(result.Skipped, err.Error())
	}
	for _, settings := range converted {
		saved, err := s.Save(settings)
		if err != nil {
			return result, err
		}
		result.Saved = append(result.Saved, saved)
	}
	return result, nil
}

// Watch reloads the store whenever a profile file changes under either
// root, until ctx is done. Bursts of events reload once.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onReload func(skipped []error, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range []string{s.defaultsRoot, s.root} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch profiles %s: %w", dir, err)
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no profile directory to watch")
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isProfileFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			skipped, err := s.Load()
			if onReload != nil {
				onReload(skipped, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("profile watcher error")
		}
	}
}

func listProfileFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isProfileFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func readProfile(path string) (model.ExportSettings, error) {
	var settings model.ExportSettings
	if err := runstore.ReadYAML(path, &settings); err != nil {
		return model.ExportSettings{}, &FormatError{Source: path, Reason: "read profile", Err: err}
	}
	settings = model.Normalize(settings)
	if settings.Name == "" {
		return model.ExportSettings{}, &FormatError{Source: path, Reason: "profile name is required"}
	}
	return settings, nil
}

func isProfileFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
