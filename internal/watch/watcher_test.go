package watch_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
	"capturesync/internal/watch"
)

func setup(t *testing.T) (*queue.Store, *watch.Watcher, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	validator := content.NewFromConfig(cfg, logging.NewNop())
	w := watch.New(cfg.Paths.NotesDir, store, validator, store, 20*time.Millisecond, logging.NewNop())
	return store, w, cfg.Paths.NotesDir
}

func markNoContent(t *testing.T, store *queue.Store, id int64) {
	t.Helper()
	if err := store.SetUploadStatus(context.Background(), id, queue.UploadNoContent, ""); err != nil {
		t.Fatalf("SetUploadStatus: %v", err)
	}
}

func TestRescanEnqueuesRecordsThatGainedContent(t *testing.T) {
	store, w, root := setup(t)
	late := testsupport.NewRecord(t, store, "Late Notes", "2025-03-12")
	empty := testsupport.NewRecord(t, store, "Still Empty", "2025-03-12")
	other := testsupport.NewRecord(t, store, "Other Day", "2025-03-13")
	for _, rec := range []*queue.Record{late, empty, other} {
		markNoContent(t, store, rec.ID)
	}
	testsupport.WriteFile(t, filepath.Join(root, "2025-03-12", "late-notes", "summary.md"), 32)
	testsupport.WriteFile(t, filepath.Join(root, "2025-03-13", "other-day", "summary.md"), 32)

	got, err := w.Rescan(context.Background(), "2025-03-12")
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(got) != 1 || got[0] != late.ID {
		t.Fatalf("expected only record %d enqueued, got %v", late.ID, got)
	}
	item, err := store.ItemForRecord(context.Background(), late.ID)
	if err != nil || item == nil || item.Status != queue.StatusPending {
		t.Fatalf("expected pending item, got %+v err=%v", item, err)
	}
	if item, _ := store.ItemForRecord(context.Background(), other.ID); item != nil {
		t.Fatalf("record in another bucket should not be enqueued, got %+v", item)
	}
}

func TestRescanIgnoresRecordsWithOtherStatuses(t *testing.T) {
	store, w, root := setup(t)
	rec := testsupport.NewRecord(t, store, "Team Sync", "2025-03-12")
	testsupport.WriteFile(t, filepath.Join(root, "2025-03-12", "team-sync", "summary.md"), 32)

	got, err := w.Rescan(context.Background(), "2025-03-12")
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("pending record should not be touched, got %v", got)
	}
	if item, _ := store.ItemForRecord(context.Background(), rec.ID); item != nil {
		t.Fatalf("unexpected queue item %+v", item)
	}
}

func TestWatcherEnqueuesOnNewNoteFile(t *testing.T) {
	store, w, root := setup(t)
	rec := testsupport.NewRecord(t, store, "Late Notes", "2025-03-12")
	markNoContent(t, store, rec.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()
	if err := w.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	testsupport.WriteFile(t, filepath.Join(root, "2025-03-12", "late-notes", "summary.md"), 32)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.ItemForRecord(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("ItemForRecord: %v", err)
		}
		if item != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("record was not re-enqueued after its note appeared")
}

type blockingEnqueuer struct {
	store    *queue.Store
	once     sync.Once
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (b *blockingEnqueuer) Enqueue(ctx context.Context, recordID int64) (queue.EnqueueOutcome, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	outcome, err := b.store.Enqueue(context.WithoutCancel(ctx), recordID)
	b.finished.Store(true)
	return outcome, err
}

func TestStopWaitsForRunningRescan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	validator := content.NewFromConfig(cfg, logging.NewNop())
	enq := &blockingEnqueuer{store: store, started: make(chan struct{}), release: make(chan struct{})}
	w := watch.New(cfg.Paths.NotesDir, store, validator, enq, 20*time.Millisecond, logging.NewNop())

	rec := testsupport.NewRecord(t, store, "Late Notes", "2025-03-12")
	markNoContent(t, store, rec.ID)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.NotesDir, "2025-03-12", "late-notes", "summary.md"), 32)

	select {
	case <-enq.started:
	case <-time.After(5 * time.Second):
		w.Stop()
		t.Fatal("rescan never reached Enqueue")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a rescan was still enqueuing")
	case <-time.After(100 * time.Millisecond):
	}

	close(enq.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the rescan finished")
	}
	if !enq.finished.Load() {
		t.Fatal("expected the running rescan to finish before Stop returned")
	}
}

func TestBucketOf(t *testing.T) {
	root := filepath.Join("/notes")
	cases := map[string]string{
		"/notes":                           "",
		"/notes/2025-03-12":                "2025-03-12",
		"/notes/2025-03-12/team-sync/a.md": "2025-03-12",
		"/elsewhere/2025-03-12":            "",
	}
	for path, want := range cases {
		if got := watch.BucketOf(root, path); got != want {
			t.Fatalf("BucketOf(%q) = %q, want %q", path, got, want)
		}
	}
}
