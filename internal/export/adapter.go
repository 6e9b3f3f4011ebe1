// Package export runs the per-format export loops: option mapping, naming,
// host invocation and output reconciliation for every job of a format.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
	"sheetbatch/internal/naming"
	"sheetbatch/internal/reconcile"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Task is one planned job and the sheets its host call covers.
type Task struct {
	Job      *model.ExportJob
	SheetIDs []string
}

// Plan is the ordered work of one format.
type Plan struct {
	Format    model.Format
	OutputDir string
	// WholeBatch is set when a single host call covers every sheet.
	WholeBatch bool
	Tasks      []Task
}

// Hooks observe a plan as it runs. Start is called before a job's host
// call and Done once the job is terminal.
type Hooks struct {
	Start func(job *model.ExportJob)
	Done  func(job *model.ExportJob)
}

type Adapter struct {
	format     model.Format
	exporter   host.Exporter
	caps       host.Capabilities
	generator  *naming.Generator
	reconciler *reconcile.Reconciler
	log        logrus.FieldLogger
}

type Deps struct {
	Exporter     host.Exporter
	Capabilities host.CapabilityProvider
	Generator    *naming.Generator
	Reconciler   *reconcile.Reconciler
	Logger       logrus.FieldLogger
}

// New returns the adapter for format. Capabilities are resolved once here.
func New(format model.Format, deps Deps) (*Adapter, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if deps.Exporter == nil || deps.Generator == nil || deps.Reconciler == nil {
		return nil, fmt.Errorf("%s adapter requires an exporter, a name generator and a reconciler", format)
	}
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	caps := host.NewCapabilities(format)
	if deps.Capabilities != nil {
		caps = deps.Capabilities.Capabilities(format)
	}
	return &Adapter{
		format:     format,
		exporter:   deps.Exporter,
		caps:       caps,
		generator:  deps.Generator,
		reconciler: deps.Reconciler,
		log:        log.WithField("format", format.String()),
	}, nil
}

func (a *Adapter) Format() model.Format { return a.format }

// WholeBatch reports whether the format exports all sheets in one call.
func (a *Adapter) WholeBatch(s model.ExportSettings) bool {
	if !a.format.PerSheet() {
		return true
	}
	return a.format == model.FormatPDF && s.CombineFiles
}

// FormatDir is the directory a format writes into.
func FormatDir(outputDir string, format model.Format, subfolders bool) string {
	if subfolders {
		return filepath.Join(outputDir, strings.ToUpper(format.String()))
	}
	return outputDir
}

// CombinedBaseName names a whole-batch output: the combined name, else the
// profile name, else "Combined".
func CombinedBaseName(s model.ExportSettings) string {
	for _, v := range []string{s.CombinedName, s.Name, model.DefaultCombinedName} {
		if strings.TrimSpace(v) != "" {
			return naming.Sanitize(v)
		}
	}
	return model.DefaultCombinedName
}

// Plan lays out pending jobs for sheets. Per-sheet names that collide
// within the format get a numeric suffix.
func (a *Adapter) Plan(sheets []model.Sheet, s model.ExportSettings, outputDir string) Plan {
	dir := FormatDir(outputDir, a.format, s.CreateSubfolders)
	p := Plan{Format: a.format, OutputDir: dir, WholeBatch: a.WholeBatch(s)}
	if len(sheets) == 0 {
		return p
	}
	if p.WholeBatch {
		ids := make([]string, 0, len(sheets))
		for _, sh := range sheets {
			ids = append(ids, sh.ID)
		}
		p.Tasks = []Task{{
			Job: &model.ExportJob{
				SheetID:     strings.Join(ids, ","),
				SheetNumber: fmt.Sprintf("%d sheets", len(sheets)),
				SheetName:   CombinedBaseName(s),
				Format:      a.format.String(),
				BaseName:    CombinedBaseName(s),
				OutputDir:   dir,
				Status:      model.StatusPending,
			},
			SheetIDs: ids,
		}}
		if len(sheets) == 1 {
			p.Tasks[0].Job.SheetNumber = sheets[0].Number
		}
		return p
	}

	used := map[string]int{}
	for _, sh := range sheets {
		base := uniqueName(a.generator.BuildTemplate(sh, s.Naming), used)
		p.Tasks = append(p.Tasks, Task{
			Job: &model.ExportJob{
				SheetID:     sh.ID,
				SheetNumber: sh.Number,
				SheetName:   sh.Name,
				Format:      a.format.String(),
				BaseName:    base,
				OutputDir:   dir,
				Status:      model.StatusPending,
			},
			SheetIDs: []string{sh.ID},
		})
	}
	return p
}

func uniqueName(base string, used map[string]int) string {
	key := strings.ToLower(base)
	n := used[key]
	used[key] = n + 1
	if n == 0 {
		return base
	}
	for {
		n++
		suffix := fmt.Sprintf("_%d", n)
		trimmed := base
		if limit := naming.MaxBaseNameLength - len(suffix); utf8.RuneCountInString(trimmed) > limit {
			trimmed = strings.TrimRight(string([]rune(trimmed)[:limit]), "_")
		}
		candidate := trimmed + suffix
		if _, taken := used[strings.ToLower(candidate)]; !taken {
			used[strings.ToLower(candidate)] = 1
			return candidate
		}
	}
}

// Run executes the plan's jobs in order. A failing job is recorded and the
// loop continues. An invalid option bag fails every job of the format and
// is returned. When ctx is done between jobs the remaining jobs are
// cancelled and ctx.Err() is returned.
func (a *Adapter) Run(ctx context.Context, p Plan, s model.ExportSettings, hooks Hooks) error {
	bag, _, err := BuildOptions(a.format, s, a.caps, a.log)
	if err != nil {
		for _, t := range p.Tasks {
			notify(hooks.Start, t.Job)
			_ = model.TransitionJobStatus(t.Job, model.StatusFailed, err.Error())
			notify(hooks.Done, t.Job)
		}
		return err
	}

	for i, t := range p.Tasks {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, rest := range p.Tasks[i:] {
				_ = model.TransitionJobStatus(rest.Job, model.StatusCancelled, "cancelled before export")
			}
			return ctxErr
		}
		notify(hooks.Start, t.Job)
		a.runTask(ctx, t, bag)
		notify(hooks.Done, t.Job)
	}
	return nil
}

func (a *Adapter) runTask(ctx context.Context, t Task, bag host.OptionBag) {
	log := a.log.WithFields(logrus.Fields{"job_id": t.Job.JobID, "sheet": t.Job.SheetNumber})
	req := host.ExportRequest{
		Format:    a.format,
		OutputDir: t.Job.OutputDir,
		SheetIDs:  t.SheetIDs,
		Options:   bag,
	}
	_, err := a.reconciler.Run(ctx, t.Job, a.format.Extension(), func(ctx context.Context, hint string) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("host export panicked: %v", r)
			}
		}()
		req.NameHint = hint
		return a.exporter.Export(ctx, req)
	})
	if err != nil {
		log.WithError(err).Warn("export job failed")
		return
	}
	log.WithFields(logrus.Fields{
		"path":       t.Job.FinalPath,
		"diagnostic": t.Job.Diagnostic,
	}).Info("export job done")
}

func notify(fn func(*model.ExportJob), job *model.ExportJob) {
	if fn != nil {
		fn(job)
	}
}
