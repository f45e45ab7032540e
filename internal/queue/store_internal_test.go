package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestCompletedAnomalies(t *testing.T) {
	store, err := OpenPath(filepath.Join(t.TempDir(), "capturesync.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	healthy, _ := store.NewRecord(ctx, NewRecordParams{Title: "Healthy", DateBucket: "2025-03-12"})
	skewed, _ := store.NewRecord(ctx, NewRecordParams{Title: "Skewed", DateBucket: "2025-03-12"})
	orphan, _ := store.NewRecord(ctx, NewRecordParams{Title: "Orphan", DateBucket: "2025-03-12"})
	if err := store.SetUploadStatus(ctx, healthy.ID, UploadCompleted, "folder-1"); err != nil {
		t.Fatalf("SetUploadStatus: %v", err)
	}

	// Rows written by older builds bypassed the store invariants.
	past := formatTime(skewed.CreatedAt.Add(-time.Hour))
	if _, err := store.db.ExecContext(ctx,
		`UPDATE records SET upload_status = 'completed', remote_folder_id = 'f', uploaded_at = ? WHERE id = ?`,
		past, skewed.ID); err != nil {
		t.Fatalf("seed skewed: %v", err)
	}
	if _, err := store.db.ExecContext(ctx,
		`UPDATE records SET upload_status = 'completed', uploaded_at = ? WHERE id = ?`,
		formatTime(time.Now()), orphan.ID); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	anomalies, err := store.CompletedAnomalies(ctx)
	if err != nil {
		t.Fatalf("CompletedAnomalies: %v", err)
	}
	if len(anomalies) != 2 {
		t.Fatalf("expected 2 anomalies, got %#v", anomalies)
	}
	if anomalies[0].RecordID != skewed.ID || anomalies[0].Kind != AnomalyUploadedBeforeCreated {
		t.Fatalf("unexpected first anomaly %#v", anomalies[0])
	}
	if anomalies[1].RecordID != orphan.ID || anomalies[1].Kind != AnomalyCompletedWithoutRef {
		t.Fatalf("unexpected second anomaly %#v", anomalies[1])
	}
}

func TestTimestampsCompareLexically(t *testing.T) {
	a := time.Date(2025, 3, 12, 10, 0, 5, 100_000_000, time.UTC)
	b := time.Date(2025, 3, 12, 10, 0, 5, 120_000_000, time.UTC)
	if !(formatTime(a) < formatTime(b)) {
		t.Fatalf("expected %s < %s", formatTime(a), formatTime(b))
	}
	parsed, err := parseTimeString(formatTime(b))
	if err != nil || !parsed.Equal(b) {
		t.Fatalf("round trip = %v, %v", parsed, err)
	}
}
