package runstore

import (
	"os"
	"path/filepath"
	"testing"

	"sheetbatch/internal/model"
)

func TestWriteBytesLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.json")
	if err := WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := WriteJSON(path, map[string]int{"a": 2}); err != nil {
		t.Fatalf("overwrite json: %v", err)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if got["a"] != 2 {
		t.Fatalf("expected overwritten value, got %v", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, got %d entries", len(entries))
	}
}

func TestSaveJobsManifestRecounts(t *testing.T) {
	batchDir := filepath.Join(t.TempDir(), "b1")
	manifest := model.BatchManifest{
		SchemaVersion: 1,
		BatchID:       "b1",
		Jobs: []model.ExportJob{
			{JobID: "1", Status: model.StatusRenamed},
			{JobID: "2", Status: model.StatusFailed},
			{JobID: "3", Status: model.StatusPending},
		},
	}
	if err := SaveJobsManifest(batchDir, &manifest); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
	if err := SaveBatchMeta(batchDir, BatchMeta{BatchID: "b1"}); err != nil {
		t.Fatalf("save meta: %v", err)
	}

	loaded, err := LoadJobsManifest(batchDir)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if loaded.Total != 3 || loaded.Renamed != 1 || loaded.Failed != 1 || loaded.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", loaded)
	}

	dirs, err := ListBatchDirs(filepath.Dir(batchDir))
	if err != nil {
		t.Fatalf("list batch dirs: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != batchDir {
		t.Fatalf("unexpected batch dirs: %v", dirs)
	}
}

func TestListBatchDirsMissingRoot(t *testing.T) {
	dirs, err := ListBatchDirs(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing runs dir should not error: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected no dirs, got %v", dirs)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	in := model.DefaultSettings()
	if err := WriteYAML(path, in); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	var out model.ExportSettings
	if err := ReadYAML(path, &out); err != nil {
		t.Fatalf("read yaml: %v", err)
	}
	if out.Name != in.Name || out.Formats != in.Formats {
		t.Fatalf("unexpected round trip: %+v", out)
	}
}
