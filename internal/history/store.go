// Package history records finished batches in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"sheetbatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id      TEXT PRIMARY KEY,
	profile       TEXT NOT NULL,
	total_sheets  INTEGER NOT NULL,
	total_formats INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	cancelled     INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	message       TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
	batch_id     TEXT NOT NULL REFERENCES batches(batch_id) ON DELETE CASCADE,
	job_id       TEXT NOT NULL,
	idx          INTEGER NOT NULL,
	sheet_number TEXT NOT NULL,
	format       TEXT NOT NULL,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL,
	final_path   TEXT NOT NULL,
	diagnostic   TEXT NOT NULL,
	PRIMARY KEY (batch_id, job_id)
);
CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at);
`

type Store struct {
	db *sql.DB
}

// Batch is one recorded batch summary.
type Batch struct {
	BatchID      string `json:"batch_id"`
	Profile      string `json:"profile"`
	TotalSheets  int    `json:"total_sheets"`
	TotalFormats int    `json:"total_formats"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Cancelled    int    `json:"cancelled"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory for %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure history %s: %w", path, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a batch and its jobs. Re-recording a batch replaces it.
func (s *Store) Record(ctx context.Context, result model.ExportResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, q := range []string{`DELETE FROM jobs WHERE batch_id = ?`, `DELETE FROM batches WHERE batch_id = ?`} {
		if _, err := tx.ExecContext(ctx, q, result.BatchID); err != nil {
			return fmt.Errorf("replace batch %s: %w", result.BatchID, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (batch_id, profile, total_sheets, total_formats, succeeded, failed, cancelled, success, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.BatchID, result.Profile, result.TotalSheets, result.TotalFormats,
		result.Succeeded, result.Failed, result.Cancelled, boolInt(result.Success),
		result.Message, result.StartedAt, result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", result.BatchID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO jobs (batch_id, job_id, idx, sheet_number, format, status, message, final_path, diagnostic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()
	for _, j := range result.Jobs {
		if _, err := stmt.ExecContext(ctx,
			result.BatchID, j.JobID, j.Index, j.SheetNumber, j.Format,
			j.Status, j.Message, j.FinalPath, j.Diagnostic,
		); err != nil {
			return fmt.Errorf("insert job %s/%s: %w", result.BatchID, j.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history for %s: %w", result.BatchID, err)
	}
	return nil
}

// Recent returns up to limit batches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, profile, total_sheets, total_formats, succeeded, failed, cancelled, success, message, started_at, finished_at
		FROM batches ORDER BY started_at DESC, batch_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		var success int
		if err := rows.Scan(&b.BatchID, &b.Profile, &b.TotalSheets, &b.TotalFormats,
			&b.Succeeded, &b.Failed, &b.Cancelled, &success, &b.Message, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		b.Success = success != 0
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Jobs returns the recorded jobs of a batch in index order.
func (s *Store) Jobs(ctx context.Context, batchID string) ([]model.ExportJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, idx, sheet_number, format, status, message, final_path, diagnostic
		FROM jobs WHERE batch_id = ? ORDER BY idx`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query jobs for %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []model.ExportJob
	for rows.Next() {
		var j model.ExportJob
		if err := rows.Scan(&j.JobID, &j.Index, &j.SheetNumber, &j.Format, &j.Status, &j.Message, &j.FinalPath, &j.Diagnostic); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read jobs for %s: %w", batchID, err)
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
