package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"capturesync/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CAPTURESYNC_NOTES_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "capturesync")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.NotesDir != filepath.Join(tempHome, "Documents", "Granular", "notes") {
		t.Fatalf("unexpected notes dir: %q", cfg.Paths.NotesDir)
	}
	if cfg.Remote.Backend != config.BackendDrive {
		t.Fatalf("expected drive backend by default, got %q", cfg.Remote.Backend)
	}
	if cfg.Upload.MaxRetries != 3 {
		t.Fatalf("expected 3 retries by default, got %d", cfg.Upload.MaxRetries)
	}
	if cfg.Upload.BackoffBaseSeconds != 2 {
		t.Fatalf("expected backoff base 2, got %d", cfg.Upload.BackoffBaseSeconds)
	}
	if cfg.Paths.APIBind != "" {
		t.Fatalf("expected HTTP API disabled by default, got %q", cfg.Paths.APIBind)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "capturesync.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadNotesDirFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	notes := t.TempDir()
	t.Setenv("CAPTURESYNC_NOTES_DIR", notes)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.NotesDir != notes {
		t.Fatalf("expected notes dir from env, got %q", cfg.Paths.NotesDir)
	}
}

func TestLoadCustomConfigNormalizesExtensions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CAPTURESYNC_NOTES_DIR", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Paths.NotesDir = filepath.Join(dir, "notes")
	cfg.Upload.NoteExtensions = []string{"MD", ".md", " txt "}
	cfg.Upload.AudioExtensions = []string{"opus"}
	cfg.Logging.Format = "JSON"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if got := strings.Join(loaded.Upload.NoteExtensions, ","); got != ".md,.txt" {
		t.Fatalf("unexpected note extensions: %s", got)
	}
	if got := strings.Join(loaded.Upload.AudioExtensions, ","); got != ".opus" {
		t.Fatalf("unexpected audio extensions: %s", got)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", loaded.Logging.Format)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown backend", func(c *config.Config) { c.Remote.Backend = "s3" }, "remote.backend"},
		{"gcs without bucket", func(c *config.Config) { c.Remote.Backend = config.BackendGCS }, "remote.gcs_bucket"},
		{"nested root folder", func(c *config.Config) { c.Remote.RootFolder = "a/b" }, "remote.root_folder"},
		{"zero retries", func(c *config.Config) { c.Upload.MaxRetries = 0 }, "upload.max_retries"},
		{"negative partial delay", func(c *config.Config) { c.Upload.PartialRetryDelaySeconds = -1 }, "partial_retry_delay_seconds"},
		{"overlapping extensions", func(c *config.Config) { c.Upload.AudioExtensions = []string{".md"} }, "both note and audio"},
		{"bare ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" }, "ntfy_topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.NotesDir = "/tmp/notes"
			cfg.Paths.StateDir = "/tmp/state"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CAPTURESYNC_NOTES_DIR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Remote.RootFolder != "Granular CaptureOnly" {
		t.Fatalf("unexpected root folder: %q", cfg.Remote.RootFolder)
	}
}

func TestEnsureDirectoriesCreatesStateAndLogs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Remote.TokenFile = filepath.Join(base, "secrets", "token.json")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, filepath.Join(base, "secrets")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
