package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "opus", "codec_type": "audio", "duration": "61.5", "sample_rate": "48000", "channels": 1}
  ],
  "format": {"filename": "session42.opus", "duration": "", "size": "524288", "format_name": "ogg"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 61.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 524288 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestProberUsesBinaryOutput(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\ncat <<'JSON'\n" + sampleOutput + "\nJSON\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	got, err := Prober{Binary: script}.Duration(context.Background(), "/tmp/session42.opus")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 61.5 {
		t.Fatalf("duration = %v, want 61.5", got)
	}
}

func TestProberReportsFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'Invalid data' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := (Prober{Binary: script}).Duration(context.Background(), "/tmp/x.opus"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
}
