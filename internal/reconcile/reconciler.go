package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"sheetbatch/internal/model"
)

const (
	DefaultSettleDelay = 750 * time.Millisecond

	tempAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	tempPrefix   = "sbtmp-"
)

type Options struct {
	SettleDelay time.Duration
	Logger      logrus.FieldLogger
	// Sleep and Now are replaced in tests.
	Sleep func(time.Duration)
	Now   func() time.Time
}

type Reconciler struct {
	settle time.Duration
	log    logrus.FieldLogger
	sleep  func(time.Duration)
	now    func() time.Time
}

func New(opts Options) *Reconciler {
	r := &Reconciler{
		settle: opts.SettleDelay,
		log:    opts.Logger,
		sleep:  opts.Sleep,
		now:    opts.Now,
	}
	if r.settle < 0 {
		r.settle = 0
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// TempName returns a collision-proof base name for the host hint.
func TempName() string {
	return tempPrefix + gonanoid.MustGenerate(tempAlphabet, 12)
}

// Attempt holds the pre-export state of one job.
type Attempt struct {
	Dir       string
	Ext       string
	Hint      string
	StartedAt time.Time

	pre Snapshot
	r   *Reconciler
}

// Prepare takes the pre-export snapshot and stamps the start time.
func (r *Reconciler) Prepare(dir, ext string) (*Attempt, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	pre, err := TakeSnapshot(dir, ext)
	if err != nil {
		return nil, err
	}
	return &Attempt{
		Dir:       dir,
		Ext:       ext,
		Hint:      TempName(),
		StartedAt: r.now(),
		pre:       pre,
		r:         r,
	}, nil
}

// Result is a renamed output and its non-fatal size diagnostic.
type Result struct {
	FinalPath  string
	Size       int64
	Diagnostic string
}

// ReconcileAndRename waits for the settle delay, diffs the directory
// against the pre-export snapshot and renames the produced file to
// desiredBase+Ext. Any other file already at the target is replaced.
func (a *Attempt) ReconcileAndRename(desiredBase string) (Result, error) {
	if a.r.settle > 0 {
		a.r.sleep(a.r.settle)
	}
	post, err := TakeSnapshot(a.Dir, a.Ext)
	if err != nil {
		return Result{}, err
	}
	selected, ok := Select(a.pre, post, a.StartedAt)
	if !ok {
		return Result{}, &NotFoundError{Dir: a.Dir, Ext: a.Ext, Hint: a.Hint}
	}
	if n := Candidates(a.pre, post, a.StartedAt); n > 1 {
		a.r.log.WithFields(logrus.Fields{
			"dir":        a.Dir,
			"candidates": n,
			"selected":   filepath.Base(selected),
		}).Warn("several exported files detected; another writer may share the output directory")
	}

	target, err := filepath.Abs(filepath.Join(a.Dir, desiredBase+a.Ext))
	if err != nil {
		return Result{}, fmt.Errorf("resolve target for %s: %w", desiredBase, err)
	}
	if err := replaceInto(selected, target); err != nil {
		return Result{}, err
	}

	res := Result{FinalPath: target}
	if info, err := os.Stat(target); err == nil {
		res.Size = info.Size()
		res.Diagnostic = SizeBand(a.Ext, info.Size())
	}
	return res, nil
}

func replaceInto(src, target string) error {
	if src == target {
		return nil
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat exported file %s: %w", src, err)
	}
	if targetInfo, err := os.Stat(target); err == nil {
		if !os.SameFile(srcInfo, targetInfo) {
			if err := os.Remove(target); err != nil {
				return fmt.Errorf("remove existing %s: %w", target, err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat target %s: %w", target, err)
	}
	if err := os.Rename(src, target); err != nil {
		return fmt.Errorf("rename %s to %s: %w", filepath.Base(src), filepath.Base(target), err)
	}
	return nil
}

// Run drives one job through pre_snapshot, host_write_invoked and
// post_snapshot_diff to renamed or not_found. write receives the temporary
// hint name. The job ends failed when write or a filesystem step errors.
func (r *Reconciler) Run(ctx context.Context, job *model.ExportJob, ext string, write func(ctx context.Context, hint string) error) (Result, error) {
	job.StartedAt = r.now().UTC().Format(time.RFC3339Nano)
	fail := func(err error) (Result, error) {
		_ = model.TransitionJobStatus(job, model.StatusFailed, err.Error())
		job.FinishedAt = r.now().UTC().Format(time.RFC3339Nano)
		return Result{}, err
	}

	if err := model.TransitionJobStatus(job, model.StatusPreSnapshot, ""); err != nil {
		return Result{}, err
	}
	attempt, err := r.Prepare(job.OutputDir, ext)
	if err != nil {
		return fail(err)
	}
	if err := model.TransitionJobStatus(job, model.StatusHostWriteInvoked, ""); err != nil {
		return fail(err)
	}
	if err := write(ctx, attempt.Hint); err != nil {
		return fail(err)
	}
	if err := model.TransitionJobStatus(job, model.StatusPostSnapshotDiff, ""); err != nil {
		return fail(err)
	}

	res, err := attempt.ReconcileAndRename(job.BaseName)
	job.FinishedAt = r.now().UTC().Format(time.RFC3339Nano)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = model.TransitionJobStatus(job, model.StatusNotFound, err.Error())
			return Result{}, err
		}
		return fail(err)
	}
	job.FinalPath = res.FinalPath
	job.Diagnostic = res.Diagnostic
	if err := model.TransitionJobStatus(job, model.StatusRenamed, ""); err != nil {
		return res, err
	}
	return res, nil
}

// SizeBand classifies an output size. It never affects success.
func SizeBand(ext string, size int64) string {
	h := humanize.IBytes(uint64(size))
	switch {
	case size == 0:
		return "empty file"
	case size < minPlausible(ext):
		return fmt.Sprintf("suspiciously small (%s)", h)
	case size > 512*humanize.MiByte:
		return fmt.Sprintf("very large (%s)", h)
	default:
		return fmt.Sprintf("ok (%s)", h)
	}
}

func minPlausible(ext string) int64 {
	switch ext {
	case ".pdf":
		return 2 * humanize.KiByte
	case ".dwg":
		return 4 * humanize.KiByte
	default:
		return 1 * humanize.KiByte
	}
}
