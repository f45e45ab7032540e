package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
)

// Enqueuer schedules a record for upload.
type Enqueuer interface {
	Enqueue(ctx context.Context, recordID int64) (queue.EnqueueOutcome, error)
}

// RecordLister returns records by upload status.
type RecordLister interface {
	ListRecords(ctx context.Context, statuses ...queue.UploadStatus) ([]*queue.Record, error)
	RecordingsFor(ctx context.Context, recordID int64) ([]queue.Recording, error)
}

// Validator reports a record's uploadable artifacts and classifies file names.
type Validator interface {
	Validate(ctx context.Context, rec *queue.Record, recordings []queue.Recording) (content.Report, error)
	Classify(name string) (content.Kind, bool)
}

// Watcher follows the notes tree.
type Watcher struct {
	root      string
	records   RecordLister
	validator Validator
	enqueuer  Enqueuer
	logger    *slog.Logger
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fsw     *fsnotify.Watcher
}

// New constructs a watcher rooted at the notes directory.
func New(root string, records RecordLister, validator Validator, enqueuer Enqueuer, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		root:      filepath.Clean(root),
		records:   records,
		validator: validator,
		enqueuer:  enqueuer,
		logger:    logging.NewComponentLogger(logger, "notes-watcher"),
		debounce:  debounce,
		pending:   make(map[string]*time.Timer),
	}
}

// Start begins watching. The notes directory must exist.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("notes watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.addTree(fsw, w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx, fsw)

	w.logger.Info("watching notes directory",
		logging.String("path", w.root),
		logging.Duration("debounce", w.debounce),
		logging.String(logging.FieldEventType, "watch_started"),
	)
	return nil
}

// Stop ends watching. Pending rescans are dropped and running ones are
// waited for.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	fsw := w.fsw
	for bucket, timer := range w.pending {
		timer.Stop()
		delete(w.pending, bucket)
	}
	w.mu.Unlock()

	cancel()
	_ = fsw.Close()
	w.wg.Wait()
}

// addTree watches the root and the two directory levels below it: date
// buckets and their record folders.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.depth(path) > 2 {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("watch add failed", logging.String("path", path), logging.Error(err))
		}
		return nil
	})
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "notes watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if this repeats"),
				logging.String(logging.FieldImpact, "late notes may need `capturesync records check`"),
			)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Has(fsnotify.Create) && w.depth(ev.Name) <= 2 {
			_ = w.addTree(fsw, ev.Name)
			w.schedule(ctx, BucketOf(w.root, ev.Name))
		}
		return
	}
	if _, ok := w.validator.Classify(filepath.Base(ev.Name)); !ok {
		return
	}
	w.schedule(ctx, BucketOf(w.root, ev.Name))
}

// schedule debounces rescans per bucket.
func (w *Watcher) schedule(ctx context.Context, bucket string) {
	if bucket == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if timer, ok := w.pending[bucket]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[bucket] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, bucket)
		if !w.running {
			w.mu.Unlock()
			return
		}
		// Stop waits for rescans that got this far.
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		if ctx.Err() != nil {
			return
		}
		if _, err := w.Rescan(ctx, bucket); err != nil {
			w.logger.Warn("bucket rescan failed",
				logging.String("bucket", bucket),
				logging.Error(err),
			)
		}
	})
}

// Rescan re-validates the no_content records of bucket and enqueues those
// that now have content. It returns the enqueued record ids.
func (w *Watcher) Rescan(ctx context.Context, bucket string) ([]int64, error) {
	records, err := w.records.ListRecords(ctx, queue.UploadNoContent)
	if err != nil {
		return nil, err
	}
	var enqueued []int64
	for _, rec := range records {
		if rec.DateBucket != bucket {
			continue
		}
		recordings, err := w.records.RecordingsFor(ctx, rec.ID)
		if err != nil {
			return enqueued, err
		}
		report, err := w.validator.Validate(ctx, rec, recordings)
		if err != nil {
			w.logger.Debug("validation failed during rescan",
				logging.Int64(logging.FieldRecordID, rec.ID),
				logging.Error(err),
			)
			continue
		}
		if !report.HasContent() {
			continue
		}
		outcome, err := w.enqueuer.Enqueue(ctx, rec.ID)
		if err != nil {
			return enqueued, err
		}
		w.logger.Info("late notes found; record re-enqueued",
			logging.Int64(logging.FieldRecordID, rec.ID),
			logging.String("bucket", bucket),
			logging.String("outcome", string(outcome)),
			logging.String(logging.FieldEventType, "watch_requeue"),
		)
		enqueued = append(enqueued, rec.ID)
	}
	return enqueued, nil
}

// BucketOf returns the date bucket directory name containing path, or "" when
// path is the root itself or outside it.
func BucketOf(root, path string) string {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.Split(filepath.ToSlash(rel), "/")[0]
}
