package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLockDirName    = ".run.lock"
	outputLockDirName = ".sheetbatch.lock"
	lockOwnerFile     = "owner.json"
)

// ErrLocked reports that another sheetbatch process holds a lock.
var ErrLocked = errors.New("directory is locked")

type Lock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
}

// AcquireRunLock guards a batch directory's manifest.
func AcquireRunLock(batchDir string) (Lock, error) {
	return acquire(batchDir, runLockDirName, "")
}

// AcquireOutputLock guards an output directory against a second concurrent
// batch. It does not protect against writers outside sheetbatch.
func AcquireOutputLock(outputDir, batchID string) (Lock, error) {
	return acquire(outputDir, outputLockDirName, batchID)
}

func acquire(dir, name, batchID string) (Lock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return Lock{}, fmt.Errorf("lock directory is required")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return Lock{}, fmt.Errorf("create directory %s: %w", target, err)
	}

	lockDir := filepath.Join(target, name)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, lockOwnerFile)
			var owner lockOwner
			if readErr := ReadJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return Lock{}, fmt.Errorf(
					"%w: %s (pid=%d created_at=%s host=%s batch=%s)",
					ErrLocked, target, owner.PID, owner.CreatedAt, owner.Hostname, owner.BatchID,
				)
			}
			return Lock{}, fmt.Errorf("%w: %s", ErrLocked, target)
		}
		return Lock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
		BatchID:   batchID,
	}
	ownerPath := filepath.Join(lockDir, lockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.Remove(lockDir)
		return Lock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}

	return Lock{lockDir: lockDir}, nil
}

func (l Lock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.lockDir, err)
	}
	return nil
}

// IsLockName reports whether a directory entry belongs to a lock.
func IsLockName(name string) bool {
	return name == runLockDirName || name == outputLockDirName
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
