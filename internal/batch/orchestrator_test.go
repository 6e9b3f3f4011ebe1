package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
	"sheetbatch/internal/runstore"
)

type fakeHost struct {
	*host.Register
	host.CapabilityTable

	mu     sync.Mutex
	fail   map[string]bool
	calls  []host.ExportRequest
	views  []model.ViewOptions
	onCall func(n int)
}

func (f *fakeHost) Export(_ context.Context, req host.ExportRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.views = append(f.views, f.Register.ViewOptions())
	n := len(f.calls)
	f.mu.Unlock()
	if f.onCall != nil {
		defer f.onCall(n)
	}
	for _, id := range req.SheetIDs {
		if f.fail[id] {
			return fmt.Errorf("host export threw for sheet %s", id)
		}
	}
	return os.WriteFile(filepath.Join(req.OutputDir, req.NameHint+req.Format.Extension()), []byte("data"), 0o644)
}

func (f *fakeHost) formatsCalled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Format.String())
	}
	return out
}

func newFakeHost(t *testing.T, n int) *fakeHost {
	t.Helper()
	reg := host.NewRegister("test")
	for i := 1; i <= n; i++ {
		require.NoError(t, reg.AddSheet(model.Sheet{
			ID:     fmt.Sprint(i),
			Number: fmt.Sprintf("A%d", 100+i),
			Name:   fmt.Sprintf("Level %d", i),
		}, nil, nil))
	}
	return &fakeHost{Register: reg, CapabilityTable: host.BaselineCapabilities(), fail: map[string]bool{}}
}

func newOrchestrator(t *testing.T, h host.Host, runsDir string, sinks ...Sink) *Orchestrator {
	t.Helper()
	log, _ := test.NewNullLogger()
	ids := 0
	o, err := New(Options{
		Host:    h,
		RunsDir: runsDir,
		Logger:  log,
		Sinks:   sinks,
		NewID: func() string {
			ids++
			return fmt.Sprintf("batch-%d", ids)
		},
	})
	require.NoError(t, err)
	return o
}

func settingsFor(t *testing.T, formats ...model.Format) model.ExportSettings {
	s := model.DefaultSettings()
	s.OutputFolder = filepath.Join(t.TempDir(), "out")
	s.Formats = model.NewFormatSet(formats...)
	return s
}

type completionRecord struct {
	calls   int
	success bool
	message string
}

func (c *completionRecord) fn(success bool, message string) {
	c.calls++
	c.success = success
	c.message = message
}

func TestRunBatchToleratesOneSheetFailure(t *testing.T) {
	h := newFakeHost(t, 5)
	h.fail["3"] = true
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatPDF)

	var progress []string
	var done completionRecord
	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s,
		func(current, total int, label string, complete bool) {
			progress = append(progress, fmt.Sprintf("%d/%d %s %v", current, total, label, complete))
		}, done.fn)

	require.NoError(t, err)
	require.Equal(t, 4, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.True(t, result.Success)
	require.Equal(t, 5, result.TotalSheets)
	require.Equal(t, 1, result.TotalFormats)
	require.Equal(t, 1, done.calls)
	require.True(t, done.success)
	require.Contains(t, done.message, "exported 4 of 5 items (1 failed)")
	require.Contains(t, done.message, "host export threw for sheet 3")

	require.Len(t, progress, 10)
	require.Equal(t, "1/5 A101 - Level 1 false", progress[0])
	require.Equal(t, "1/5 A101 - Level 1 true", progress[1])
	require.Equal(t, "5/5 A105 - Level 5 true", progress[9])

	require.Equal(t, model.StatusFailed, result.Jobs[2].Status)
	for _, i := range []int{0, 1, 3, 4} {
		require.Equal(t, model.StatusRenamed, result.Jobs[i].Status)
		require.FileExists(t, result.Jobs[i].FinalPath)
	}
	require.Equal(t, filepath.Join(s.OutputFolder, "A104-Level_4.pdf"), result.Jobs[3].FinalPath)
}

func TestRunBatchFormatIndependence(t *testing.T) {
	h := newFakeHost(t, 3)
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatDWG)

	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 3)
	for _, j := range result.Jobs {
		require.Equal(t, "dwg", j.Format)
	}
	require.Equal(t, []string{"dwg", "dwg", "dwg"}, h.formatsCalled())

	s = settingsFor(t, model.FormatPDF, model.FormatDWG, model.FormatIFC)
	result, err = o.RunBatch(context.Background(), h.Sheets(), model.NewFormatSet(model.FormatIFC, model.FormatNWC), s, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	require.Equal(t, "ifc", result.Jobs[0].Format)
	require.Equal(t, 1, result.TotalFormats)
}

func TestRunBatchRunsFormatsInOrder(t *testing.T) {
	h := newFakeHost(t, 2)
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatNWC, model.FormatPDF, model.FormatIFC, model.FormatDWG)
	s.CreateSubfolders = true

	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"pdf", "pdf", "dwg", "dwg", "ifc", "nwc"}, h.formatsCalled())
	require.Equal(t, 6, result.Succeeded)
	require.Equal(t, filepath.Join(s.OutputFolder, "IFC", "Default.ifc"), result.Jobs[4].FinalPath)
	for i, j := range result.Jobs {
		require.Equal(t, i, j.Index)
	}
}

func TestRunBatchAppliesViewOptionsOnce(t *testing.T) {
	h := newFakeHost(t, 3)
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatPDF)
	s.Options.HideUnreferencedTags = true

	_, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.Commits())
	want := model.ViewOptions{HideCropBoundaries: true, HideScopeBoxes: true, HideUnreferencedTags: true}
	require.Len(t, h.views, 3)
	for _, v := range h.views {
		require.Equal(t, want, v)
	}

	s.Options = model.RenderOptions{}
	_, err = o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.Commits(), "no transaction without view options")
}

func TestRunBatchCancelsBetweenSheets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newFakeHost(t, 4)
	h.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatPDF, model.FormatDWG)

	var done completionRecord
	result, err := o.RunBatch(ctx, h.Sheets(), model.FormatSet(0), s, nil, done.fn)
	require.ErrorIs(t, err, ErrCancelled)
	require.Len(t, h.calls, 2)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 6, result.Cancelled)
	require.Equal(t, 0, result.Failed)
	require.True(t, result.Success)
	require.Contains(t, done.message, "6 cancelled")
}

func TestRunBatchWritesManifestAndRecordsSinks(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	h := newFakeHost(t, 2)
	h.fail["2"] = true
	var recorded []model.ExportResult
	o := newOrchestrator(t, h, runsDir, SinkFunc(func(ctx context.Context, r model.ExportResult) error {
		require.NoError(t, ctx.Err())
		recorded = append(recorded, r)
		return errors.New("sink errors are logged, not fatal")
	}))
	s := settingsFor(t, model.FormatPDF)

	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	require.Equal(t, result.BatchID, recorded[0].BatchID)

	batchDir := runstore.BatchDir(runsDir, result.BatchID)
	manifest, err := runstore.LoadJobsManifest(batchDir)
	require.NoError(t, err)
	require.Equal(t, 2, manifest.Total)
	require.Equal(t, 1, manifest.Renamed)
	require.Equal(t, 1, manifest.Failed)
	meta, err := runstore.LoadBatchMeta(batchDir)
	require.NoError(t, err)
	require.Equal(t, []string{"pdf"}, meta.Formats)

	_, err = os.Stat(filepath.Join(batchDir, ".run.lock"))
	require.True(t, os.IsNotExist(err), "run lock released")
	_, err = os.Stat(filepath.Join(s.OutputFolder, ".sheetbatch.lock"))
	require.True(t, os.IsNotExist(err), "output lock released")
}

func TestRunBatchCriticalErrorBecomesFailedCompletion(t *testing.T) {
	h := newFakeHost(t, 2)
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatPDF)

	var done completionRecord
	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s,
		func(current, total int, label string, complete bool) {
			if complete {
				panic("progress view crashed")
			}
		}, done.fn)
	require.Error(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, done.calls)
	require.False(t, done.success)
	require.True(t, strings.HasPrefix(done.message, "batch failed: critical error: progress view crashed"))

	lock, err := runstore.AcquireOutputLock(s.OutputFolder, "after")
	require.NoError(t, err, "output lock released after panic")
	require.NoError(t, lock.Release())
}

func TestRunBatchRejectsLockedOutputAndEmptyInput(t *testing.T) {
	h := newFakeHost(t, 1)
	o := newOrchestrator(t, h, "")
	s := settingsFor(t, model.FormatPDF)

	lock, err := runstore.AcquireOutputLock(s.OutputFolder, "other")
	require.NoError(t, err)
	var done completionRecord
	_, err = o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, done.fn)
	require.ErrorIs(t, err, runstore.ErrLocked)
	require.False(t, done.success)
	require.NoError(t, lock.Release())
	require.Empty(t, h.calls)

	s.Selection.Numbers = []string{"Z999"}
	result, err := o.RunBatch(context.Background(), h.Sheets(), model.FormatSet(0), s, nil, nil)
	require.Error(t, err)
	require.Empty(t, result.Jobs)
	require.False(t, result.Success)

	s.Selection = model.SelectionFilter{}
	s.Formats = model.NewFormatSet(model.FormatPDF)
	result, err = o.RunBatch(context.Background(), h.Sheets(), model.NewFormatSet(model.FormatDWG), s, nil, nil)
	require.Error(t, err)
	require.Equal(t, 0, result.TotalFormats)
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(Options{SettleDelay: time.Second})
	require.Error(t, err)
}
