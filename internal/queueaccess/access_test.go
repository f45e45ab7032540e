package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"capturesync/internal/api"
	"capturesync/internal/ipc"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
	"capturesync/internal/queueaccess"
	"capturesync/internal/testsupport"
)

func openStoreSession(t *testing.T) (queueaccess.Session, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("daemon down") },
		func() (*queue.Store, error) { return store, nil },
		func(s *queue.Store) queueaccess.Access {
			return queueaccess.NewStoreAccess(cfg, s, logging.NewNop())
		},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	return session, store
}

func TestOpenWithFallbackUsesStore(t *testing.T) {
	session, _ := openStoreSession(t)
	if session.Access.Online() {
		t.Fatal("expected store-backed access to report offline")
	}
}

func TestOpenWithFallbackRequiresStoreOpener(t *testing.T) {
	_, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("daemon down") },
		nil,
		nil,
	)
	if err == nil {
		t.Fatal("expected error without a store opener")
	}
}

func TestStoreAccessAddRecordAndEnqueue(t *testing.T) {
	session, store := openStoreSession(t)
	ctx := context.Background()
	access := session.Access

	rec, err := access.AddRecord(ctx, ipc.AddRecordRequest{
		Title:      "Vendor Call",
		DateBucket: "2025-03-12",
		NoteText:   "action items",
		Recordings: []string{"/captures/vendor.opus", " "},
		Enqueue:    true,
	})
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if rec.Slug != "vendor-call" {
		t.Fatalf("unexpected slug %q", rec.Slug)
	}
	recordings, err := store.RecordingsFor(ctx, rec.ID)
	if err != nil || len(recordings) != 1 {
		t.Fatalf("expected one recording, got %v (err=%v)", recordings, err)
	}

	results, err := access.Enqueue(ctx, []int64{rec.ID, 404})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if results[0].Outcome != queue.EnqueueAlreadyQueued {
		t.Fatalf("expected already queued, got %+v", results[0])
	}
	if results[1].Error == "" {
		t.Fatalf("expected unknown record error, got %+v", results[1])
	}

	items, err := access.List(ctx, []string{"pending"})
	if err != nil || len(items) != 1 {
		t.Fatalf("List pending = %v (err=%v)", items, err)
	}
	if _, err := access.List(ctx, []string{"nope"}); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestStoreAccessRecordInspectUsesInlineNote(t *testing.T) {
	session, store := openStoreSession(t)
	ctx := context.Background()
	rec, err := store.NewRecord(ctx, queue.NewRecordParams{
		Title:      "Offsite",
		DateBucket: "2025-03-12",
		NoteText:   "notes from the offsite",
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	detail, report, err := session.Access.Record(ctx, rec.ID, true)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if detail == nil || detail.Record.Title != "Offsite" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if report == nil || !report.HasNotes || report.Notes[0].Name != "offsite.md" {
		t.Fatalf("unexpected report %+v", report)
	}

	detail, report, err = session.Access.Record(ctx, 999, true)
	if err != nil || detail != nil || report != nil {
		t.Fatalf("expected nil results for unknown record, got %v %v %v", detail, report, err)
	}
}

func TestStoreAccessRetry(t *testing.T) {
	session, store := openStoreSession(t)
	ctx := context.Background()
	rec := testsupport.NewRecord(t, store, "Retro", "")
	if _, err := store.Enqueue(ctx, rec.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	item, err := store.ItemForRecord(ctx, rec.ID)
	if err != nil || item == nil {
		t.Fatalf("ItemForRecord: %v", err)
	}
	if _, err := store.RecordFailure(ctx, item.ID, "boom", 1); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	result, err := session.Access.Retry(ctx, []int64{rec.ID, 77})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("expected one update, got %+v", result)
	}
	if result.Items[1].Outcome != api.RetryNotFound {
		t.Fatalf("expected not found for 77, got %+v", result.Items[1])
	}

	counts, err := session.Access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts["pending"] != 1 || counts["failed"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
