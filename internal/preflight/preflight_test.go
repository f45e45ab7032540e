package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"capturesync/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckReadableDirectory_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckReadableDirectory("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCredentials_Drive(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.CredentialsFile = filepath.Join(t.TempDir(), "credentials.json")

	if result := CheckCredentials(&cfg); result.Passed {
		t.Fatal("expected failure for missing credentials")
	}

	if err := os.WriteFile(cfg.Remote.CredentialsFile, []byte(`{"foo":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckCredentials(&cfg); result.Passed {
		t.Fatal("expected failure for non-oauth json")
	}

	if err := os.WriteFile(cfg.Remote.CredentialsFile, []byte(`{"installed":{"client_id":"x"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckCredentials(&cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckCredentials_GCSNeedsBucket(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Backend = config.BackendGCS
	cfg.Remote.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	if result := CheckCredentials(&cfg); result.Passed {
		t.Fatal("expected failure without bucket")
	}
	cfg.Remote.GCSBucket = "captures"
	if result := CheckCredentials(&cfg); !result.Passed {
		t.Fatalf("expected ambient credentials to pass, got: %s", result.Detail)
	}
}

func TestCheckToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if result := CheckToken(path); result.Passed {
		t.Fatal("expected failure when not linked")
	}
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckToken(path); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/capturesync"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	if result := CheckNtfy(context.Background(), down.URL); result.Passed {
		t.Fatal("expected failure for server error")
	}
}

func TestRunAllSkipsTokenForGCS(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.NotesDir = base
	cfg.Paths.StateDir = base
	cfg.Remote.Backend = config.BackendGCS
	cfg.Remote.GCSBucket = "captures"

	for _, result := range RunAll(context.Background(), &cfg) {
		if result.Name == "Remote token" {
			t.Fatal("token check should not run for gcs")
		}
	}
	if failed := Failed(RunAll(context.Background(), &cfg)); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
}
