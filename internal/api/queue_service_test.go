package api_test

import (
	"context"
	"testing"

	"capturesync/internal/api"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
)

func TestQueueServiceListAnnotatesRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.NewRecord(t, store, "Team Sync", "")
	if _, err := store.Enqueue(context.Background(), rec.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	svc := api.NewQueueService(store)
	items, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	got := items[0]
	if got.RecordID != rec.ID || got.RecordTitle != "Team Sync" {
		t.Fatalf("unexpected record annotation: %+v", got)
	}
	if got.Status != string(queue.StatusPending) || got.UploadStatus != string(queue.UploadPending) {
		t.Fatalf("unexpected statuses: %+v", got)
	}
	if got.CreatedAt == "" || got.AvailableAt == "" {
		t.Fatalf("expected timestamps to be formatted: %+v", got)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["failed"] != 0 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if _, ok := stats["processing"]; !ok {
		t.Fatalf("expected every status key, got %v", stats)
	}
}

func TestQueueServiceRecordDetail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.NewRecord(t, store, "Team Sync", "")
	if _, err := store.AddRecording(context.Background(), rec.ID, "abc", "/tmp/session.opus", 61.5); err != nil {
		t.Fatalf("AddRecording: %v", err)
	}

	svc := api.NewQueueService(store)
	detail, err := svc.Record(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if detail == nil || detail.Record.Slug != "team-sync" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.Item != nil {
		t.Fatalf("expected no queue row before enqueue")
	}
	if len(detail.Recordings) != 1 || detail.Recordings[0].DurationSeconds != 61.5 {
		t.Fatalf("unexpected recordings: %+v", detail.Recordings)
	}

	missing, err := svc.Record(context.Background(), 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown record, got %+v %v", missing, err)
	}
}

func TestNilQueueServiceIsSafe(t *testing.T) {
	var svc *api.QueueService
	items, err := svc.List(context.Background())
	if err != nil || items != nil {
		t.Fatalf("expected nil result, got %v %v", items, err)
	}
}
