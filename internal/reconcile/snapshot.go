// Package reconcile finds the file a host export just wrote and renames it
// to its computed name.
//
// The protocol assumes exclusive use of the output directory for one file
// extension while a job runs. Another process writing files with the same
// extension into the same directory can be mistaken for the host's output.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrNotFound = errors.New("exported file not found")

// NotFoundError reports that no new or rewritten file appeared.
type NotFoundError struct {
	Dir  string
	Ext  string
	Hint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no new or modified %s file in %s after export (hint %s)", e.Ext, e.Dir, e.Hint)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Snapshot maps absolute paths to their modification times.
type Snapshot map[string]time.Time

// TakeSnapshot lists regular files in dir whose extension matches ext,
// case-insensitively. A missing dir is an empty snapshot.
func TakeSnapshot(dir, ext string) (Snapshot, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("list output directory %s: %w", abs, err)
	}
	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		snap[filepath.Join(abs, e.Name())] = info.ModTime()
	}
	return snap, nil
}

func (s Snapshot) paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Select picks the produced file: the first path (in path order) absent
// from pre, else the first path modified strictly after startedAt.
func Select(pre, post Snapshot, startedAt time.Time) (string, bool) {
	paths := post.paths()
	for _, p := range paths {
		if _, seen := pre[p]; !seen {
			return p, true
		}
	}
	for _, p := range paths {
		if post[p].After(startedAt) {
			return p, true
		}
	}
	return "", false
}

// Candidates counts how many files in post satisfy either criterion.
func Candidates(pre, post Snapshot, startedAt time.Time) int {
	n := 0
	for p, mt := range post {
		if _, seen := pre[p]; !seen || mt.After(startedAt) {
			n++
		}
	}
	return n
}
