package content_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capturesync/internal/content"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
)

const bucket = "2025-03-12"

type stubProber struct {
	calls []string
	value float64
}

func (p *stubProber) Duration(_ context.Context, path string) (float64, error) {
	p.calls = append(p.calls, path)
	return p.value, nil
}

func newValidator(t *testing.T, prober content.Prober) (*content.Validator, string) {
	t.Helper()
	notes := t.TempDir()
	return content.NewValidator(content.Options{
		NotesDir:        notes,
		NoteExtensions:  []string{".md", ".txt", ".json"},
		AudioExtensions: []string{".opus", ".audio"},
		Prober:          prober,
	}), notes
}

func record(id int64, title string) *queue.Record {
	return &queue.Record{ID: id, Title: title, DateBucket: bucket}
}

func hasIssue(report content.Report, prefix string) bool {
	for _, issue := range report.Issues {
		if strings.HasPrefix(issue, prefix+":") {
			return true
		}
	}
	return false
}

func TestValidateFindsRenamedSessionFolder(t *testing.T) {
	validator, notes := newValidator(t, nil)
	if err := os.MkdirAll(filepath.Join(notes, bucket, "team-sync"), 0o755); err != nil {
		t.Fatalf("mkdir canonical: %v", err)
	}
	audioPath := filepath.Join(notes, bucket, "team-sync-renamed", "session42.audio")
	testsupport.WriteFile(t, audioPath, 2048)

	report, err := validator.Validate(context.Background(), record(42, "Team Sync"), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.HasNotes || !report.HasRecordings {
		t.Fatalf("expected recordings only, got %#v", report)
	}
	if len(report.Recordings) != 1 {
		t.Fatalf("expected one recording, got %#v", report.Recordings)
	}
	got := report.Recordings[0]
	if got.Name != "session42.audio" || got.Path != audioPath || got.Size != 2048 || got.Kind != content.KindAudio {
		t.Fatalf("unexpected candidate %#v", got)
	}
	if !hasIssue(report, content.IssueSessionID) {
		t.Fatalf("expected %s issue, got %v", content.IssueSessionID, report.Issues)
	}
	if !hasIssue(report, content.IssueOutsideCanonical) {
		t.Fatalf("expected %s issue, got %v", content.IssueOutsideCanonical, report.Issues)
	}
}

func TestValidateAccumulatesAcrossDirectories(t *testing.T) {
	validator, notes := newValidator(t, nil)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "budget-review", "notes.md"), 10)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "budget-review-v2", "agenda.txt"), 20)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "budget-review-v2", "whiteboard.png"), 30)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "unrelated", "other.md"), 40)

	report, err := validator.Validate(context.Background(), record(5, "Budget Review"), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Notes) != 2 || report.Notes[0].Name != "notes.md" || report.Notes[1].Name != "agenda.txt" {
		t.Fatalf("unexpected notes %#v", report.Notes)
	}
	if len(report.Issues) != 1 || report.Issues[0] != "foundOutsideCanonical: 2025-03-12/budget-review-v2" {
		t.Fatalf("unexpected issues %v", report.Issues)
	}
	if report.TotalBytes() != 30 {
		t.Fatalf("total bytes = %d, want 30", report.TotalBytes())
	}
}

func TestValidateNoContent(t *testing.T) {
	validator, notes := newValidator(t, nil)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "standup", "photo.png"), 5)

	rec := record(3, "Standup")
	rec.NoteText = " { } "
	report, err := validator.Validate(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.HasContent() {
		t.Fatalf("expected no content, got %#v", report)
	}
}

func TestValidateMissingBucketIsNotAnError(t *testing.T) {
	validator, _ := newValidator(t, nil)
	report, err := validator.Validate(context.Background(), record(3, "Standup"), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.HasContent() || len(report.Directories) != 0 {
		t.Fatalf("expected empty report, got %#v", report)
	}
}

func TestValidateFallsBackToDatabaseNote(t *testing.T) {
	validator, _ := newValidator(t, nil)
	rec := record(8, "Design Crit")
	rec.NoteText = `{"blocks":[{"text":"ship it"}]}`

	report, err := validator.Validate(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.HasNotes || len(report.Notes) != 1 {
		t.Fatalf("expected inline note, got %#v", report)
	}
	note := report.Notes[0]
	if note.Name != "design-crit.json" || !note.IsInline() || note.Size != int64(len(rec.NoteText)) {
		t.Fatalf("unexpected inline note %#v", note)
	}
	rc, err := note.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != rec.NoteText {
		t.Fatalf("inline body = %q", data)
	}

	rec.NoteText = "plain markdown"
	report, _ = validator.Validate(context.Background(), rec, nil)
	if report.Notes[0].Name != "design-crit.md" {
		t.Fatalf("expected markdown name, got %q", report.Notes[0].Name)
	}
}

func TestValidateRecordingReferencesAndDurations(t *testing.T) {
	prober := &stubProber{value: 33}
	validator, notes := newValidator(t, prober)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "retro", "retro.opus"), 100)
	external := filepath.Join(t.TempDir(), "captures", "mic-1.opus")
	testsupport.WriteFile(t, external, 200)

	recordings := []queue.Recording{
		{RecordID: 11, Path: external, DurationSeconds: 12},
		{RecordID: 11, Path: filepath.Join(t.TempDir(), "gone.opus")},
	}
	report, err := validator.Validate(context.Background(), record(11, "Retro"), recordings)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Recordings) != 2 {
		t.Fatalf("expected 2 recordings, got %#v", report.Recordings)
	}
	if report.Recordings[0].Duration != 33 {
		t.Fatalf("probed duration = %v", report.Recordings[0].Duration)
	}
	if report.Recordings[1].Path != external || report.Recordings[1].Duration != 12 {
		t.Fatalf("referenced recording = %#v", report.Recordings[1])
	}
	if len(prober.calls) != 1 {
		t.Fatalf("known durations should not be probed, calls=%v", prober.calls)
	}
	if !hasIssue(report, content.IssueRecordingReference) {
		t.Fatalf("expected %s issue, got %v", content.IssueRecordingReference, report.Issues)
	}
}

func TestValidateReportsDuplicateNames(t *testing.T) {
	validator, notes := newValidator(t, nil)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "sprint-demo", "notes.md"), 1)
	testsupport.WriteFile(t, filepath.Join(notes, bucket, "sprint-demo-old", "notes.md"), 1)

	report, err := validator.Validate(context.Background(), record(2, "Sprint Demo"), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Notes) != 1 || !strings.Contains(report.Notes[0].Path, "sprint-demo"+string(filepath.Separator)) {
		t.Fatalf("canonical copy should win, got %#v", report.Notes)
	}
	if !hasIssue(report, content.IssueDuplicateName) {
		t.Fatalf("expected duplicate issue, got %v", report.Issues)
	}
}

func TestIsTrivialNote(t *testing.T) {
	cases := map[string]bool{
		"":           true,
		"   \n":      true,
		"{}":         true,
		"[ ]":        true,
		"null":       true,
		"# Heading":  false,
		`{"a":1}`:    false,
		"[\"item\"]": false,
	}
	for text, want := range cases {
		if got := content.IsTrivialNote(text); got != want {
			t.Fatalf("IsTrivialNote(%q) = %v, want %v", text, got, want)
		}
	}
}
