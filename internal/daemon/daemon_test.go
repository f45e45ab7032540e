package daemon_test

import (
	"context"
	"errors"
	"testing"

	"capturesync/internal/config"
	"capturesync/internal/daemon"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
	"capturesync/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	notifier := notifications.NewDispatcher(cfg, nil, nil, logging.NewNop())
	notifier.Start(context.Background())
	t.Cleanup(notifier.Stop)

	connector := &testsupport.FakeConnector{Remote: testsupport.NewFakeRemote()}
	mgr := workflow.NewManager(cfg, store, connector, logging.NewNop(), workflow.WithNotifier(notifier))
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr, notifier)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() || status.QueueDBPath != cfg.DatabasePath() {
		t.Fatalf("unexpected paths: %+v", status)
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results to be recorded")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceCannotTakeLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second instance to fail acquiring the lock")
	}
}

func TestHeldLockSurvivesDaemonStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := daemon.AcquireLock(cfg.LockPath()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	connector := &testsupport.FakeConnector{Remote: testsupport.NewFakeRemote()}
	mgr := workflow.NewManager(cfg, store, connector, logging.NewNop())
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr, nil, daemon.WithLock(lock))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start with held lock: %v", err)
	}
	d.Stop()

	if !lock.Locked() {
		t.Fatal("expected caller-owned lock to stay held after Stop")
	}
	if _, err := daemon.AcquireLock(cfg.LockPath()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected lock still held, got %v", err)
	}
}

func TestEnqueueReportsUnknownRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	rec := testsupport.NewRecord(t, store, "Team Sync", "")

	results, err := d.Enqueue(context.Background(), []int64{rec.ID, 404})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %+v", results)
	}
	if results[0].Outcome != queue.EnqueueInserted || results[0].Error != "" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Error == "" {
		t.Fatalf("expected unknown record error, got %+v", results[1])
	}
}

func TestAddRecordRegistersRecordings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)

	rec, err := d.AddRecord(context.Background(), queue.NewRecordParams{
		Title:      "Design Review",
		DateBucket: "2025-03-12",
		SessionID:  "sess-1",
	}, []string{"/tmp/capture-1.m4a"}, true)
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	recordings, err := store.RecordingsFor(context.Background(), rec.ID)
	if err != nil || len(recordings) != 1 {
		t.Fatalf("expected one recording, got %v err=%v", recordings, err)
	}
	item, err := store.ItemForRecord(context.Background(), rec.ID)
	if err != nil || item == nil {
		t.Fatalf("expected record to be queued, got %+v err=%v", item, err)
	}
}

func TestRetryFailedRequeuesSelectedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "Team Sync", "")
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

	result, err := d.RetryFailed(ctx, []int64{rec.ID, 404})
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if result.UpdatedCount != 1 || len(result.Items) != 2 {
		t.Fatalf("unexpected retry result: %+v", result)
	}
	if got, _ := store.ItemForRecord(ctx, rec.ID); got == nil || got.Status != queue.StatusPending || got.Attempts != 0 {
		t.Fatalf("expected pending item with reset attempts, got %+v", got)
	}
}
