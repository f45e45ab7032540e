package testsupport

import (
	"context"
	"testing"
	"time"

	"capturesync/internal/config"
	"capturesync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord inserts a record for tests. An empty bucket defaults to 2025-03-12.
func NewRecord(t testing.TB, store *queue.Store, title, bucket string) *queue.Record {
	t.Helper()

	if bucket == "" {
		bucket = "2025-03-12"
	}
	rec, err := store.NewRecord(context.Background(), queue.NewRecordParams{
		Title:      title,
		DateBucket: bucket,
		CreatedAt:  time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("store.NewRecord: %v", err)
	}
	return rec
}

// NewRecordWithID inserts a record with a fixed identifier.
func NewRecordWithID(t testing.TB, store *queue.Store, id int64, title, bucket string) *queue.Record {
	t.Helper()

	if bucket == "" {
		bucket = "2025-03-12"
	}
	rec, err := store.NewRecord(context.Background(), queue.NewRecordParams{
		ID:         id,
		Title:      title,
		DateBucket: bucket,
		CreatedAt:  time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("store.NewRecord(%d): %v", id, err)
	}
	return rec
}
