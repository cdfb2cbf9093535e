package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lockersync/internal/history"
	"lockersync/internal/locker"
	"lockersync/internal/testsupport"
	"lockersync/internal/upload"
)

var rig = locker.Identity{ID: "AA:BB:CC:DD:EE:FF", Name: "rig"}

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult() upload.BatchResult {
	result := upload.NewBatchResult()
	result.Uploaded["/music/a.mp3"] = "srv-a"
	result.Matched["/music/b.mp3"] = "srv-b"
	result.NotUploaded["/music/c.flac"] = "transcoding disabled"
	return result
}

func TestRecordBatchAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	if err := store.RecordBatch(ctx, "batch-1", rig, older, upload.NewBatchResult()); err != nil {
		t.Fatalf("RecordBatch empty: %v", err)
	}
	if err := store.RecordBatch(ctx, "batch-2", rig, time.Now(), sampleResult()); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}

	batches, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(batches) != 2 || batches[0].ID != "batch-2" {
		t.Fatalf("expected newest batch first, got %+v", batches)
	}
	b := batches[0]
	if b.Uploaded != 1 || b.Matched != 1 || b.NotUploaded != 1 || b.Total() != 3 {
		t.Fatalf("unexpected counts %+v", b)
	}
	if b.UploaderID != rig.ID || b.StartedAt.IsZero() || b.FinishedAt.Before(b.StartedAt) {
		t.Fatalf("unexpected batch metadata %+v", b)
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d (%v)", len(limited), err)
	}
}

func TestOutcomesAndLookup(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.RecordBatch(ctx, "first", rig, time.Now().Add(-time.Minute), sampleResult()); err != nil {
		t.Fatalf("RecordBatch first: %v", err)
	}
	retry := upload.NewBatchResult()
	retry.Uploaded["/music/c.flac"] = "srv-c"
	time.Sleep(2 * time.Millisecond)
	if err := store.RecordBatch(ctx, "second", rig, time.Now(), retry); err != nil {
		t.Fatalf("RecordBatch second: %v", err)
	}

	outcomes, err := store.Outcomes(ctx, "first")
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 3 || outcomes[0].Path != "/music/a.mp3" || outcomes[0].Bucket != upload.BucketUploaded {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}

	past, err := store.Lookup(ctx, "/music/c.flac")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(past) != 2 {
		t.Fatalf("expected two outcomes for c.flac, got %+v", past)
	}
	if past[0].BatchID != "second" || past[0].Detail != "srv-c" {
		t.Fatalf("expected newest outcome first, got %+v", past[0])
	}
	if past[1].Bucket != upload.BucketNotUploaded || past[1].Detail != "transcoding disabled" {
		t.Fatalf("unexpected older outcome %+v", past[1])
	}
}

func TestRecordBatchRejectsDuplicateID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.RecordBatch(ctx, "dup", rig, time.Now(), sampleResult()); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	if err := store.RecordBatch(ctx, "dup", rig, time.Now(), sampleResult()); err == nil {
		t.Fatal("expected duplicate batch id to fail")
	}
	outcomes, err := store.Outcomes(ctx, "dup")
	if err != nil || len(outcomes) != 3 {
		t.Fatalf("failed insert must not add outcomes, got %d (%v)", len(outcomes), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
