package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"capturesync/internal/config"
	"capturesync/internal/logging"
	"capturesync/internal/media/ffprobe"
	"capturesync/internal/queue"
	"capturesync/internal/resolver"
	"capturesync/internal/services"
)

// Issue prefixes reported alongside candidates.
const (
	IssueOutsideCanonical   = "foundOutsideCanonical"
	IssueSessionID          = "foundBySessionId"
	IssueRecordingReference = "foundByRecordingReference"
	IssueDuplicateName      = "duplicateName"
	IssueUnreadable         = "unreadable"
	IssueDatabaseNote       = "noteFromDatabase"
)

// Prober reports audio durations in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Options configures a Validator.
type Options struct {
	NotesDir        string
	NoteExtensions  []string
	AudioExtensions []string
	Prober          Prober
	Logger          *slog.Logger
}

// Validator inspects the notes tree for a record's uploadable artifacts.
type Validator struct {
	notesDir string
	fsys     fs.FS
	notes    map[string]struct{}
	audio    map[string]struct{}
	prober   Prober
	logger   *slog.Logger
}

// NewValidator constructs a Validator rooted at opts.NotesDir.
func NewValidator(opts Options) *Validator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{
		notesDir: opts.NotesDir,
		fsys:     os.DirFS(opts.NotesDir),
		notes:    extensionSet(opts.NoteExtensions),
		audio:    extensionSet(opts.AudioExtensions),
		prober:   opts.Prober,
		logger:   logging.NewComponentLogger(logger, "content"),
	}
}

// NewFromConfig builds a Validator from configuration, enabling ffprobe
// duration lookups when upload.probe_durations is set.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Validator {
	opts := Options{
		NotesDir:        cfg.Paths.NotesDir,
		NoteExtensions:  cfg.Upload.NoteExtensions,
		AudioExtensions: cfg.Upload.AudioExtensions,
		Logger:          logger,
	}
	if cfg.Upload.ProbeDurations {
		opts.Prober = ffprobe.Prober{Binary: cfg.FFprobeBinary()}
	}
	return NewValidator(opts)
}

// Classify returns the artifact kind for a file name, or false when the
// extension is not whitelisted.
func (v *Validator) Classify(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := v.notes[ext]; ok {
		return KindNote, true
	}
	if _, ok := v.audio[ext]; ok {
		return KindAudio, true
	}
	return "", false
}

// Validate enumerates the artifacts of rec. A report without content is a
// valid outcome; errors signal that the notes tree could not be read.
func (v *Validator) Validate(ctx context.Context, rec *queue.Record, recordings []queue.Recording) (Report, error) {
	if rec == nil {
		return Report{}, services.Wrap(services.ErrValidation, "content", "validate", "record is nil", nil)
	}
	bucket, err := resolver.ScanBucket(v.fsys, rec.DateBucket)
	if err != nil {
		return Report{}, services.Wrap(services.ErrTransient, "content", "scan bucket", "Failed to read notes directory", err)
	}

	sessionIDs := []string{rec.SessionID}
	byPath := make(map[string]queue.Recording, len(recordings))
	for _, recording := range recordings {
		sessionIDs = append(sessionIDs, recording.SessionID)
		if p := v.absPath(recording.Path); p != "" {
			byPath[p] = recording
		}
	}
	target := resolver.Target{
		RecordID:    rec.ID,
		Title:       rec.Title,
		Slug:        rec.Slug(),
		SessionKeys: resolver.SessionKeys(rec.ID, sessionIDs...),
	}

	c := &collector{v: v, seenPath: map[string]struct{}{}, seenName: map[string]string{}}
	for _, dir := range resolver.Resolve(target, bucket) {
		c.report.Directories = append(c.report.Directories, dir.Path)
		found := false
		for _, file := range dir.Files {
			kind, ok := v.Classify(file)
			if !ok {
				continue
			}
			rel := path.Join(dir.Path, file)
			if c.add(kind, file, filepath.Join(v.notesDir, filepath.FromSlash(rel)), rel) {
				found = true
			}
		}
		if dir.Canonical {
			continue
		}
		if found {
			c.issue(IssueOutsideCanonical, dir.Path)
		}
		for _, file := range dir.SessionFiles {
			if _, ok := v.Classify(file); ok {
				c.issue(IssueSessionID, path.Join(dir.Path, file))
			}
		}
	}

	for _, recording := range recordings {
		abs := v.absPath(recording.Path)
		if abs == "" {
			continue
		}
		if _, ok := c.seenPath[abs]; ok {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if c.add(KindAudio, filepath.Base(abs), abs, abs) {
			c.issue(IssueRecordingReference, abs)
		}
	}

	if len(c.report.Notes) == 0 && len(c.report.Recordings) == 0 && !IsTrivialNote(rec.NoteText) {
		c.report.Notes = append(c.report.Notes, inlineNote(rec.Slug(), rec.ID, rec.NoteText))
		c.issue(IssueDatabaseNote, c.report.Notes[0].Name)
	}

	for i := range c.report.Recordings {
		candidate := &c.report.Recordings[i]
		if known, ok := byPath[candidate.Path]; ok && known.DurationSeconds > 0 {
			candidate.Duration = known.DurationSeconds
			continue
		}
		if v.prober == nil {
			continue
		}
		duration, err := v.prober.Duration(ctx, candidate.Path)
		if err != nil {
			v.logger.Debug("duration probe failed",
				logging.String("path", candidate.Path),
				logging.Error(err),
			)
			continue
		}
		candidate.Duration = duration
	}

	c.report.HasNotes = len(c.report.Notes) > 0
	c.report.HasRecordings = len(c.report.Recordings) > 0
	return c.report, nil
}

func (v *Validator) absPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(v.notesDir, p)
	}
	return filepath.Clean(p)
}

type collector struct {
	v        *Validator
	report   Report
	seenPath map[string]struct{}
	seenName map[string]string
}

// add appends a file candidate, returning false when it was skipped.
func (c *collector) add(kind Kind, name, abs, display string) bool {
	if _, ok := c.seenPath[abs]; ok {
		return false
	}
	c.seenPath[abs] = struct{}{}
	if _, taken := c.seenName[name]; taken {
		c.issue(IssueDuplicateName, display)
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.issue(IssueUnreadable, display)
		}
		return false
	}
	c.seenName[name] = display
	candidate := Candidate{Name: name, Path: abs, Size: info.Size(), Kind: kind}
	if kind == KindAudio {
		c.report.Recordings = append(c.report.Recordings, candidate)
	} else {
		c.report.Notes = append(c.report.Notes, candidate)
	}
	return true
}

func (c *collector) issue(kind, detail string) {
	c.report.Issues = append(c.report.Issues, fmt.Sprintf("%s: %s", kind, detail))
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
