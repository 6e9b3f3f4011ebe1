package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"sheetbatch/internal/model"
)

const (
	batchMetaFile    = "batch.json"
	jobsManifestFile = "manifest.jobs.json"
)

type BatchMeta struct {
	BatchID          string   `json:"batch_id"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
	Profile          string   `json:"profile"`
	Document         string   `json:"document,omitempty"`
	RegisterPath     string   `json:"register_path,omitempty"`
	JobsManifestPath string   `json:"jobs_manifest_path"`
	OutputDir        string   `json:"output_dir"`
	Formats          []string `json:"formats"`
	TotalSheets      int      `json:"total_sheets"`
	TotalJobs        int      `json:"total_jobs"`
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".sheetbatch-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

func WriteYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal YAML for %s: %w", path, err)
	}
	return WriteBytes(path, data)
}

func ReadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse YAML %s: %w", path, err)
	}
	return nil
}

// ListBatchDirs returns batch directories under runsDir in name order.
// A missing runsDir is not an error.
func ListBatchDirs(runsDir string) ([]string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read runs directory %s: %w", runsDir, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(runsDir, e.Name(), batchMetaFile)); err != nil {
			continue
		}
		dirs = append(dirs, filepath.Join(runsDir, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

func BatchDir(runsDir, batchID string) string {
	return filepath.Join(runsDir, batchID)
}

func BatchMetaPath(batchDir string) string {
	return filepath.Join(batchDir, batchMetaFile)
}

func JobsManifestPath(batchDir string) string {
	return filepath.Join(batchDir, jobsManifestFile)
}

func LoadBatchMeta(batchDir string) (BatchMeta, error) {
	var meta BatchMeta
	if err := ReadJSON(BatchMetaPath(batchDir), &meta); err != nil {
		return BatchMeta{}, err
	}
	return meta, nil
}

func SaveBatchMeta(batchDir string, meta BatchMeta) error {
	return WriteJSON(BatchMetaPath(batchDir), meta)
}

func LoadJobsManifest(batchDir string) (model.BatchManifest, error) {
	var manifest model.BatchManifest
	if err := ReadJSON(JobsManifestPath(batchDir), &manifest); err != nil {
		return model.BatchManifest{}, err
	}
	return manifest, nil
}

// SaveJobsManifest recounts the manifest and writes it atomically.
func SaveJobsManifest(batchDir string, manifest *model.BatchManifest) error {
	manifest.Recount()
	return WriteJSON(JobsManifestPath(batchDir), manifest)
}
