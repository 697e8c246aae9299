// Copyright 2025 CoreSet Selection Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry persists the lifecycle of every uploaded archive in a
// SQLite database. Each upload becomes a run record that moves through
// pending, processing, and finally completed or failed, so the API can report
// what happened to an upload after the extraction pipeline has finished with
// it.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status is the lifecycle state of an extraction run.
type Status string

// The states a run moves through. Pending runs have been accepted but not
// started; processing runs are inside the extraction chain.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Run is one extraction run: a single uploaded archive and what became of it.
type Run struct {
	ID           string     `json:"id"`
	ArchiveName  string     `json:"archive_name"`
	FolderID     string     `json:"folder_id"`
	Status       Status     `json:"status"`
	FileCount    int        `json:"file_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Registry manages run persistence backed by SQLite.
type Registry struct {
	db   *sql.DB
	path string
}

const runColumns = "id, archive_name, folder_id, status, file_count, error_message, created_at, completed_at"

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
    id            TEXT PRIMARY KEY,
    archive_name  TEXT NOT NULL,
    folder_id     TEXT NOT NULL,
    status        TEXT NOT NULL,
    file_count    INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at    TEXT NOT NULL,
    completed_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_archive ON extraction_runs (archive_name);
CREATE INDEX IF NOT EXISTS idx_runs_folder ON extraction_runs (folder_id);
`

// Open initializes or connects to the registry database at dbPath, creating
// parent directories and the schema as needed.
func Open(dbPath string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Registry{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateRun inserts a pending run for a freshly accepted upload.
func (r *Registry) CreateRun(ctx context.Context, archiveName, folderID string) (*Run, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO extraction_runs (id, archive_name, folder_id, status, file_count, error_message, created_at, completed_at)
         VALUES (?, ?, ?, ?, 0, NULL, ?, NULL)`,
		id,
		archiveName,
		folderID,
		StatusPending,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return r.GetByID(ctx, id)
}

// MarkProcessing transitions a run into the processing state.
func (r *Registry) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE extraction_runs SET status = ? WHERE id = ?`,
		StatusProcessing, id,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// Complete records a successful run and how many files it produced.
func (r *Registry) Complete(ctx context.Context, id string, fileCount int) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE extraction_runs SET status = ?, file_count = ?, completed_at = ? WHERE id = ?`,
		StatusCompleted,
		fileCount,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Fail records a failed run with the message explaining why.
func (r *Registry) Fail(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE extraction_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// GetByID fetches a run by identifier, or nil when no such run exists.
func (r *Registry) GetByID(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM extraction_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetByFolder fetches the most recent run tied to an extraction folder, or
// nil when no run references it.
func (r *Registry) GetByFolder(ctx context.Context, folderID string) (*Run, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM extraction_runs WHERE folder_id = ? ORDER BY created_at DESC LIMIT 1`,
		folderID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run by folder: %w", err)
	}
	return run, nil
}

// List returns all runs ordered by creation time.
func (r *Registry) List(ctx context.Context) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM extraction_runs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteByArchive removes the run records for an uploaded archive, returning
// how many were removed. Called when the upload itself is deleted.
func (r *Registry) DeleteByArchive(ctx context.Context, archiveName string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM extraction_runs WHERE archive_name = ?`, archiveName)
	if err != nil {
		return 0, fmt.Errorf("delete runs by archive: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByFolder removes the run records tied to an extraction folder,
// returning how many were removed. Called when the folder is deleted.
func (r *Registry) DeleteByFolder(ctx context.Context, folderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM extraction_runs WHERE folder_id = ?`, folderID)
	if err != nil {
		return 0, fmt.Errorf("delete runs by folder: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		archiveName  string
		folderID     string
		statusStr    string
		fileCount    int
		errorMessage sql.NullString
		createdRaw   string
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&archiveName,
		&folderID,
		&statusStr,
		&fileCount,
		&errorMessage,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		ArchiveName:  archiveName,
		FolderID:     folderID,
		Status:       Status(statusStr),
		FileCount:    fileCount,
		ErrorMessage: errorMessage.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		run.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := time.Parse(time.RFC3339Nano, completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
