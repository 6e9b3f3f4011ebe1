// Package batch runs one export batch: every selected format in turn, every
// sheet in order, with progress, checkpoints and a final aggregate result.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sheetbatch/internal/export"
	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
	"sheetbatch/internal/naming"
	"sheetbatch/internal/reconcile"
	"sheetbatch/internal/runstore"
)

const manifestSchemaVersion = 1

var ErrCancelled = errors.New("batch cancelled")

// ProgressFunc is called twice per item: when it starts and when it is
// confirmed on disk or failed. current is 1-based.
type ProgressFunc func(current, total int, label string, complete bool)

// CompletionFunc is called once per batch.
type CompletionFunc func(success bool, message string)

// Sink receives every finished result.
type Sink interface {
	Record(ctx context.Context, result model.ExportResult) error
}

type SinkFunc func(ctx context.Context, result model.ExportResult) error

func (f SinkFunc) Record(ctx context.Context, result model.ExportResult) error { return f(ctx, result) }

type Options struct {
	Host host.Host
	// RunsDir holds per-batch manifests. Empty disables checkpoints.
	RunsDir     string
	SettleDelay time.Duration
	Logger      logrus.FieldLogger
	Sinks       []Sink
	NewID       func() string
	Now         func() time.Time
}

type Orchestrator struct {
	host       host.Host
	runsDir    string
	log        logrus.FieldLogger
	sinks      []Sink
	newID      func() string
	now        func() time.Time
	reconciler *reconcile.Reconciler
	generator  *naming.Generator
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Host == nil {
		return nil, fmt.Errorf("batch orchestrator requires a host")
	}
	o := &Orchestrator{
		host:    opts.Host,
		runsDir: strings.TrimSpace(opts.RunsDir),
		log:     opts.Logger,
		sinks:   opts.Sinks,
		newID:   opts.NewID,
		now:     opts.Now,
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.reconciler = reconcile.New(reconcile.Options{SettleDelay: opts.SettleDelay, Logger: o.log, Now: o.now})
	o.generator = naming.NewGenerator(naming.NewResolver(opts.Host))
	return o, nil
}

type formatRun struct {
	adapter *export.Adapter
	plan    export.Plan
}

type run struct {
	o        *Orchestrator
	ctx      context.Context
	log      logrus.FieldLogger
	result   model.ExportResult
	manifest model.BatchManifest
	batchDir string
	jobs     []*model.ExportJob
	progress ProgressFunc
}

// RunBatch exports sheets in every format of formats that settings also
// enables; an empty formats selects the settings' formats. Per-item
// failures are recorded in the result. The error is ErrCancelled when ctx
// ended the batch early, or the cause of a batch-level failure; completion
// is called in every case.
func (o *Orchestrator) RunBatch(
	ctx context.Context,
	sheets []model.Sheet,
	formats model.FormatSet,
	settings model.ExportSettings,
	progress ProgressFunc,
	completion CompletionFunc,
) (result model.ExportResult, err error) {
	settings = model.Normalize(settings)
	r := &run{
		o:        o,
		ctx:      ctx,
		progress: progress,
		result: model.ExportResult{
			BatchID:   o.newID(),
			Profile:   settings.Name,
			StartedAt: o.now().UTC().Format(time.RFC3339),
		},
	}
	r.log = o.log.WithFields(logrus.Fields{"batch_id": r.result.BatchID, "profile": settings.Name})

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("critical error: %v", rec)
			r.log.WithField("panic", rec).Error("batch aborted")
		}
		if err != nil && !errors.Is(err, ErrCancelled) {
			r.abort(err)
		}
		result = r.finish(err)
		if completion != nil {
			completion(result.Success, result.Message)
		}
	}()

	err = r.execute(sheets, formats, settings)
	return r.result, err
}

func (r *run) execute(sheets []model.Sheet, formats model.FormatSet, settings model.ExportSettings) error {
	o := r.o
	selected := settings.Formats
	if !formats.Empty() {
		selected = selected.Intersect(formats)
	}
	sheets = settings.Selection.Select(sheets)
	r.result.TotalSheets = len(sheets)
	r.result.TotalFormats = selected.Len()

	outputDir := strings.TrimSpace(settings.OutputFolder)
	if outputDir == "" {
		return fmt.Errorf("profile %s has no output folder", settings.Name)
	}
	if selected.Empty() {
		return fmt.Errorf("no export format selected")
	}
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets selected")
	}

	outLock, err := runstore.AcquireOutputLock(outputDir, r.result.BatchID)
	if err != nil {
		return err
	}
	defer func() {
		if err := outLock.Release(); err != nil {
			r.log.WithError(err).Warn("release output lock")
		}
	}()

	var runs []formatRun
	for _, f := range selected.List() {
		a, err := export.New(f, export.Deps{
			Exporter:     o.host,
			Capabilities: o.host,
			Generator:    o.generator,
			Reconciler:   o.reconciler,
			Logger:       r.log,
		})
		if err != nil {
			return err
		}
		p := a.Plan(sheets, settings, outputDir)
		for _, t := range p.Tasks {
			t.Job.Index = len(r.jobs)
			t.Job.JobID = fmt.Sprintf("%s-%03d", f, len(r.jobs)+1)
			r.jobs = append(r.jobs, t.Job)
		}
		runs = append(runs, formatRun{adapter: a, plan: p})
	}

	r.manifest = model.BatchManifest{
		SchemaVersion: manifestSchemaVersion,
		BatchID:       r.result.BatchID,
		Profile:       settings.Name,
		OutputDir:     outputDir,
		Formats:       selected,
	}
	if o.runsDir != "" {
		r.batchDir = runstore.BatchDir(o.runsDir, r.result.BatchID)
		if err := runstore.Mkdir(r.batchDir); err != nil {
			return err
		}
		runLock, err := runstore.AcquireRunLock(r.batchDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := runLock.Release(); err != nil {
				r.log.WithError(err).Warn("release run lock")
			}
		}()
		meta := runstore.BatchMeta{
			BatchID:          r.result.BatchID,
			CreatedAt:        r.result.StartedAt,
			Profile:          settings.Name,
			JobsManifestPath: runstore.JobsManifestPath(r.batchDir),
			OutputDir:        outputDir,
			Formats:          selected.Tags(),
			TotalSheets:      len(sheets),
			TotalJobs:        len(r.jobs),
		}
		if err := runstore.SaveBatchMeta(r.batchDir, meta); err != nil {
			return err
		}
	}
	r.checkpoint()

	if err := r.applyViewOptions(settings.Options.ViewOptions()); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"sheets":  len(sheets),
		"formats": selected.String(),
		"jobs":    len(r.jobs),
	}).Info("batch started")

	for _, fr := range runs {
		if r.ctx.Err() != nil {
			r.cancelRemaining()
			return ErrCancelled
		}
		err := fr.adapter.Run(r.ctx, fr.plan, settings, export.Hooks{
			Start: func(j *model.ExportJob) { r.report(j, false) },
			Done: func(j *model.ExportJob) {
				r.report(j, true)
				r.checkpoint()
			},
		})
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			r.cancelRemaining()
			return ErrCancelled
		default:
			r.log.WithError(err).WithField("format", fr.plan.Format.String()).Error("format export failed")
		}
	}
	return nil
}

func (r *run) applyViewOptions(v model.ViewOptions) error {
	if !v.Any() {
		return nil
	}
	tx, err := r.o.host.Begin("sheetbatch view options")
	if err != nil {
		return fmt.Errorf("begin view transaction: %w", err)
	}
	if err := tx.ApplyViewOptions(v); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply view options: %w", err)
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("commit view options: %w", err)
	}
	return nil
}

func (r *run) report(j *model.ExportJob, complete bool) {
	if r.progress != nil {
		r.progress(j.Index+1, len(r.jobs), j.Label(), complete)
	}
}

// cancelRemaining marks every job that has not started as cancelled.
func (r *run) cancelRemaining() {
	for _, j := range r.jobs {
		if j.Status == model.StatusPending {
			_ = model.TransitionJobStatus(j, model.StatusCancelled, "cancelled before export")
		}
	}
	r.checkpoint()
}

// abort fails every job that is not yet terminal.
func (r *run) abort(cause error) {
	for _, j := range r.jobs {
		if !model.IsTerminal(j.Status) {
			_ = model.TransitionJobStatus(j, model.StatusFailed, cause.Error())
		}
	}
}

func (r *run) checkpoint() {
	if r.batchDir == "" {
		return
	}
	r.manifest.GeneratedAt = r.o.now().UTC().Format(time.RFC3339)
	r.manifest.Jobs = r.snapshotJobs()
	if err := runstore.SaveJobsManifest(r.batchDir, &r.manifest); err != nil {
		r.log.WithError(err).Warn("write batch manifest")
	}
}

func (r *run) snapshotJobs() []model.ExportJob {
	out := make([]model.ExportJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out
}

func (r *run) finish(err error) model.ExportResult {
	res := r.result
	res.FinishedAt = r.o.now().UTC().Format(time.RFC3339)
	res.Jobs = r.snapshotJobs()
	var failures []string
	for _, j := range res.Jobs {
		switch {
		case j.Succeeded():
			res.Succeeded++
		case j.Status == model.StatusCancelled:
			res.Cancelled++
		default:
			res.Failed++
			if len(failures) < 3 {
				failures = append(failures, fmt.Sprintf("%s [%s]: %s", j.Label(), j.Format, j.Message))
			}
		}
	}

	critical := err != nil && !errors.Is(err, ErrCancelled)
	res.Success = res.Succeeded > 0 && !critical

	var msg strings.Builder
	if critical {
		fmt.Fprintf(&msg, "batch failed: %v; ", err)
	}
	fmt.Fprintf(&msg, "exported %d of %d items (%d failed)", res.Succeeded, len(res.Jobs), res.Failed)
	if res.Cancelled > 0 {
		fmt.Fprintf(&msg, ", %d cancelled", res.Cancelled)
	}
	if len(failures) > 0 {
		msg.WriteString("; ")
		msg.WriteString(strings.Join(failures, "; "))
	}
	res.Message = msg.String()
	r.result = res

	r.checkpoint()

	sinkCtx := context.WithoutCancel(r.ctx)
	for _, sink := range r.o.sinks {
		if err := sink.Record(sinkCtx, res); err != nil {
			r.log.WithError(err).Warn("record batch result")
		}
	}

	entry := r.log.WithFields(logrus.Fields{
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
	})
	if res.Success {
		entry.Info(res.Message)
	} else {
		entry.Warn(res.Message)
	}
	return res
}
