package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"capturesync/internal/logging"
	"capturesync/internal/services"
	"capturesync/internal/upload"
)

func TestObjectNames(t *testing.T) {
	tests := []struct {
		parent upload.FolderRef
		name   string
		folder string
		file   string
	}{
		{"", "Granular CaptureOnly", "Granular CaptureOnly/", "Granular CaptureOnly"},
		{"Granular CaptureOnly/", "2025-03-12", "Granular CaptureOnly/2025-03-12/", "Granular CaptureOnly/2025-03-12"},
		{"root/2025-03-12", "notes.md", "root/2025-03-12/notes.md/", "root/2025-03-12/notes.md"},
		{"root/", "a/b.md", "root/a-b.md/", "root/a-b.md"},
	}
	for _, tt := range tests {
		if got := FolderObject(tt.parent, tt.name); got != tt.folder {
			t.Fatalf("FolderObject(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.folder)
		}
		if got := FileObject(tt.parent, tt.name); got != tt.file {
			t.Fatalf("FileObject(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.file)
		}
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	if !isPreconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})) {
		t.Fatal("expected 412 to be detected")
	}
	if isPreconditionFailed(&googleapi.Error{Code: http.StatusConflict}) {
		t.Fatal("409 is not a precondition failure")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk read failed")
}

func TestCreateFileReadErrorCommitsNothing(t *testing.T) {
	var committed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			return
		}
		if strings.Contains(r.URL.Path, "/upload/") {
			committed.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bucket":"captures","name":"root/notes.md","size":"7"}`)
	}))

	client, err := New(context.Background(), "captures", logging.NewNop(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		srv.Close()
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	body := io.MultiReader(strings.NewReader("partial"), failingReader{})
	_, err = client.CreateFile(context.Background(), "notes.md", "root/", "text/markdown", body)
	srv.Close()

	if err == nil || !strings.Contains(err.Error(), "disk read failed") {
		t.Fatalf("expected read error, got %v", err)
	}
	if kind := services.ClassifyFailure(err); kind != services.FailureTransient {
		t.Fatalf("expected transient failure, got %s", kind)
	}
	if n := committed.Load(); n != 0 {
		t.Fatalf("expected no object committed, got %d uploads", n)
	}
}
