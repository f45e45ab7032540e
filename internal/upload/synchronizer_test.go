package upload_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"capturesync/internal/content"
	"capturesync/internal/services"
	"capturesync/internal/testsupport"
	"capturesync/internal/upload"
)

func TestSyncFileReplacesExistingCopies(t *testing.T) {
	remote := testsupport.NewFakeRemote()
	remote.Seed("notes.md", "folder-x", []byte("old"))
	remote.Seed("notes.md", "folder-x", []byte("older"))
	remote.Seed("notes.md", "folder-y", []byte("elsewhere"))

	path := filepath.Join(t.TempDir(), "notes.md")
	testsupport.WriteFile(t, path, 64)

	sync := upload.NewSynchronizer(remote, nil)
	id, err := sync.SyncFile(context.Background(), content.Candidate{
		Name: "notes.md",
		Path: path,
		Size: 64,
		Kind: content.KindNote,
	}, "folder-x")
	if err != nil {
		t.Fatalf("SyncFile: %v", err)
	}

	files := remote.FilesIn("folder-x")
	if len(files) != 1 || files[0].ID != id {
		t.Fatalf("expected only the new file in folder, got %+v", files)
	}
	if files[0].MediaType != "text/markdown" || len(files[0].Body) != 64 {
		t.Fatalf("unexpected upload %s (%d bytes)", files[0].MediaType, len(files[0].Body))
	}
	if got := len(remote.FilesIn("folder-y")); got != 1 {
		t.Fatalf("other folders must be untouched, got %d files", got)
	}

	calls := remote.Calls()
	lastDelete, create := -1, -1
	for i, call := range calls {
		switch {
		case strings.HasPrefix(call, testsupport.OpDeleteFile+":"):
			lastDelete = i
		case strings.HasPrefix(call, testsupport.OpCreateFile+":"):
			create = i
		}
	}
	if lastDelete < 0 || create < lastDelete {
		t.Fatalf("expected deletes before create, got %v", calls)
	}
}

func TestSyncFileUploadsInlineNote(t *testing.T) {
	remote := testsupport.NewFakeRemote()
	sync := upload.NewSynchronizer(remote, nil)

	_, err := sync.SyncFile(context.Background(), content.Candidate{
		Name:   "standup.json",
		Kind:   content.KindNote,
		Inline: []byte(`{"summary":"ok"}`),
	}, "folder-1")
	if err != nil {
		t.Fatalf("SyncFile: %v", err)
	}
	files := remote.FilesIn("folder-1")
	if len(files) != 1 || string(files[0].Body) != `{"summary":"ok"}` {
		t.Fatalf("unexpected files %+v", files)
	}
	if files[0].MediaType != "application/json" {
		t.Fatalf("expected application/json, got %s", files[0].MediaType)
	}
}

func TestSyncFileClassifiesFailures(t *testing.T) {
	remote := testsupport.NewFakeRemote()
	remote.FailNext(testsupport.OpCreateFile, errors.New("503 backend error"))
	sync := upload.NewSynchronizer(remote, nil)

	candidate := content.Candidate{Name: "a.md", Kind: content.KindNote, Inline: []byte("hi")}
	_, err := sync.SyncFile(context.Background(), candidate, "folder-1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	missing := content.Candidate{Name: "gone.opus", Kind: content.KindAudio, Path: filepath.Join(t.TempDir(), "gone.opus")}
	_, err = sync.SyncFile(context.Background(), missing, "folder-1")
	if kind := services.ClassifyFailure(err); kind != services.FailureTransient {
		t.Fatalf("expected missing local file to be transient, got %s", kind)
	}
}

func TestSyncFileRequiresFolder(t *testing.T) {
	sync := upload.NewSynchronizer(testsupport.NewFakeRemote(), nil)
	_, err := sync.SyncFile(context.Background(), content.Candidate{Name: "a.md", Inline: []byte("x")}, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
