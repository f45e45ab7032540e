package content

import (
	"bytes"
	"io"
	"os"
)

// Kind classifies an artifact.
type Kind string

const (
	KindNote  Kind = "note"
	KindAudio Kind = "audio"
)

// Candidate is a single artifact selected for upload. It is never persisted.
type Candidate struct {
	Name string `json:"name"`
	// Path is the absolute file path, empty for inline notes.
	Path string `json:"path,omitempty"`
	Size int64  `json:"size"`
	Kind Kind   `json:"kind"`
	// Duration in seconds; zero when unknown or not audio.
	Duration float64 `json:"duration,omitempty"`
	Inline   []byte  `json:"-"`
}

// IsInline reports whether the candidate content comes from the database.
func (c Candidate) IsInline() bool {
	return c.Path == "" && c.Inline != nil
}

// Open returns a reader over the candidate content.
func (c Candidate) Open() (io.ReadCloser, error) {
	if c.IsInline() {
		return io.NopCloser(bytes.NewReader(c.Inline)), nil
	}
	return os.Open(c.Path)
}

// Report is the outcome of validating a record.
type Report struct {
	HasNotes      bool        `json:"has_notes"`
	HasRecordings bool        `json:"has_recordings"`
	Notes         []Candidate `json:"notes"`
	Recordings    []Candidate `json:"recordings"`
	Issues        []string    `json:"issues,omitempty"`
	Directories   []string    `json:"directories,omitempty"`
}

// HasContent reports whether anything qualifies for upload.
func (r Report) HasContent() bool {
	return r.HasNotes || r.HasRecordings
}

// Files returns notes followed by recordings, the order they are uploaded in.
func (r Report) Files() []Candidate {
	files := make([]Candidate, 0, len(r.Notes)+len(r.Recordings))
	files = append(files, r.Notes...)
	return append(files, r.Recordings...)
}

// TotalBytes sums the candidate sizes.
func (r Report) TotalBytes() int64 {
	var total int64
	for _, c := range r.Files() {
		total += c.Size
	}
	return total
}
