package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sheetbatch/internal/model"
)

func sampleResult(id, started string, succeeded int) model.ExportResult {
	return model.ExportResult{
		BatchID:      id,
		Profile:      "Default",
		TotalSheets:  2,
		TotalFormats: 1,
		Succeeded:    succeeded,
		Failed:       2 - succeeded,
		Success:      succeeded > 0,
		Message:      "exported",
		StartedAt:    started,
		FinishedAt:   started,
		Jobs: []model.ExportJob{
			{JobID: "pdf-001", Index: 0, SheetNumber: "A101", Format: "pdf", Status: model.StatusRenamed, FinalPath: "/out/A101.pdf"},
			{JobID: "pdf-002", Index: 1, SheetNumber: "A102", Format: "pdf", Status: model.StatusFailed, Message: "boom"},
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(ctx, sampleResult("b1", "2026-01-01T10:00:00Z", 1)))
	require.NoError(t, store.Record(ctx, sampleResult("b2", "2026-01-02T10:00:00Z", 0)))
	require.NoError(t, store.Record(ctx, sampleResult("b1", "2026-01-01T10:00:00Z", 2)), "re-recording replaces")

	batches, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "b2", batches[0].BatchID)
	require.False(t, batches[0].Success)
	require.Equal(t, 2, batches[1].Succeeded)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	jobs, err := store.Jobs(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "/out/A101.pdf", jobs[0].FinalPath)
	require.Equal(t, "boom", jobs[1].Message)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}
