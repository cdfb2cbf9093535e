package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lockersync/internal/config"
	"lockersync/internal/locker"
	"lockersync/internal/upload"
)

// Batch summarises one recorded upload run.
type Batch struct {
	ID           string    `json:"id"`
	UploaderID   string    `json:"uploader_id"`
	UploaderName string    `json:"uploader_name"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Uploaded     int       `json:"uploaded"`
	Matched      int       `json:"matched"`
	NotUploaded  int       `json:"not_uploaded"`
}

// Total returns the number of files in the batch.
func (b Batch) Total() int {
	return b.Uploaded + b.Matched + b.NotUploaded
}

// Outcome is where one path ended in one batch. Detail holds the server id
// for uploaded/matched files and the reason otherwise.
type Outcome struct {
	BatchID    string
	Path       string
	Bucket     upload.Bucket
	Detail     string
	FinishedAt time.Time
}

// Store manages the history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the history database in the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordBatch stores a finished batch and every per-path outcome atomically.
func (s *Store) RecordBatch(ctx context.Context, batchID string, id locker.Identity, started time.Time, result upload.BatchResult) error {
	finished := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, uploader_id, uploader_name, started_at, finished_at, uploaded, matched, not_uploaded)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID,
		id.ID,
		id.Name,
		started.UTC().Format(time.RFC3339Nano),
		finished.Format(time.RFC3339Nano),
		len(result.Uploaded),
		len(result.Matched),
		len(result.NotUploaded),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO outcomes (batch_id, path, bucket, detail) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, path := range result.Paths() {
		bucket, detail, _ := result.Bucket(path)
		if _, err := stmt.ExecContext(ctx, batchID, path, string(bucket), detail); err != nil {
			return fmt.Errorf("insert outcome for %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Recent returns up to limit batches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uploader_id, uploader_name, started_at, finished_at, uploaded, matched, not_uploaded
         FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var (
			b                     Batch
			startedRaw, finishRaw string
		)
		if err := rows.Scan(&b.ID, &b.UploaderID, &b.UploaderName, &startedRaw, &finishRaw, &b.Uploaded, &b.Matched, &b.NotUploaded); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.StartedAt = parseTime(startedRaw)
		b.FinishedAt = parseTime(finishRaw)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Lookup returns every recorded outcome for path, newest first.
func (s *Store) Lookup(ctx context.Context, path string) ([]Outcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.batch_id, o.path, o.bucket, o.detail, b.finished_at
         FROM outcomes o JOIN batches b ON b.id = o.batch_id
         WHERE o.path = ? ORDER BY b.finished_at DESC`, path)
}

// Outcomes returns the per-path outcomes of one batch sorted by path.
func (s *Store) Outcomes(ctx context.Context, batchID string) ([]Outcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT o.batch_id, o.path, o.bucket, o.detail, b.finished_at
         FROM outcomes o JOIN batches b ON b.id = o.batch_id
         WHERE o.batch_id = ? ORDER BY o.path`, batchID)
}

func (s *Store) queryOutcomes(ctx context.Context, query string, arg string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o           Outcome
			bucket, raw string
		)
		if err := rows.Scan(&o.BatchID, &o.Path, &bucket, &o.Detail, &raw); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Bucket = upload.Bucket(bucket)
		o.FinishedAt = parseTime(raw)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
