package upload_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"capturesync/internal/content"
	"capturesync/internal/upload"
)

func writeHeader(t *testing.T, name string, header []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := append(append([]byte(nil), header...), bytes.Repeat([]byte{0}, 256)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMediaType(t *testing.T) {
	flac := writeHeader(t, "clip.bin", []byte("fLaC"))
	ogg := writeHeader(t, "voice.opus", []byte("OggS"))
	plain := writeHeader(t, "session42.audio", []byte("RIFF"))
	unknownWav := writeHeader(t, "memo.wav", []byte("RIFF"))

	tests := []struct {
		name      string
		candidate content.Candidate
		want      string
	}{
		{"markdown note", content.Candidate{Name: "notes.md", Kind: content.KindNote}, "text/markdown"},
		{"docx note", content.Candidate{Name: "Notes.DOCX", Kind: content.KindNote}, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"unknown note", content.Candidate{Name: "notes.rtf", Kind: content.KindNote}, "text/plain"},
		{"sniffed flac", content.Candidate{Name: "clip.bin", Path: flac, Kind: content.KindAudio}, "audio/flac"},
		{"sniffed opus", content.Candidate{Name: "voice.opus", Path: ogg, Kind: content.KindAudio}, "audio/opus"},
		{"extension fallback", content.Candidate{Name: "memo.wav", Path: unknownWav, Kind: content.KindAudio}, "audio/wav"},
		{"unknown audio", content.Candidate{Name: "session42.audio", Path: plain, Kind: content.KindAudio}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upload.MediaType(tt.candidate); got != tt.want {
				t.Fatalf("MediaType(%s) = %q, want %q", tt.candidate.Name, got, tt.want)
			}
		})
	}
}
