package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"capturesync/internal/daemon"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
)

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "capturesync-1.log")
	second := filepath.Join(dir, "capturesync-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "capturesync.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "capturesync-2.log" {
		t.Fatalf("pointer should follow newest run, got %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capturesync.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
}

func TestRunLeavesLiveInstanceUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer func() { _ = lock.Unlock() }()

	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.NewRecord(t, store, "Team Sync", "2025-03-12")
	ctx := context.Background()
	if _, err := store.Enqueue(ctx, rec.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := store.ClaimNext(ctx, time.Now().Add(time.Second))
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %v", claimed, err)
	}

	livePID := "4242\n"
	if err := os.WriteFile(cfg.PIDPath(), []byte(livePID), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(cfg.SocketPath(), nil, 0o600); err != nil {
		t.Fatalf("write socket placeholder: %v", err)
	}

	err = Run(ctx, cfg, Options{})
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	item, err := store.GetItem(ctx, claimed.ID)
	if err != nil || item == nil {
		t.Fatalf("GetItem: %v %v", item, err)
	}
	if item.Status != queue.StatusProcessing {
		t.Fatalf("expected in-flight item to stay processing, got %s", item.Status)
	}
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil || string(data) != livePID {
		t.Fatalf("expected live pid file untouched, got %q %v", data, err)
	}
	if _, err := os.Stat(cfg.SocketPath()); err != nil {
		t.Fatalf("expected live socket untouched: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "capturesync.log")); !os.IsNotExist(err) {
		t.Fatalf("expected no run log pointer from the rejected launch, got %v", err)
	}
}
