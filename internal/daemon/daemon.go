package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"capturesync/internal/api"
	"capturesync/internal/config"
	"capturesync/internal/content"
	"capturesync/internal/deps"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/preflight"
	"capturesync/internal/queue"
	"capturesync/internal/watch"
	"capturesync/internal/workflow"
)

// Daemon coordinates the background upload services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	workflow  *workflow.Manager
	notifier  *notifications.Dispatcher
	validator *content.Validator
	watcher   *watch.Watcher
	queueSvc  *api.QueueService
	apiSrv    *apiServer

	lockPath string
	lock     *flock.Flock
	// heldLock marks a lock owned by the caller; Stop leaves it held.
	heldLock bool

	checksMu     sync.RWMutex
	dependencies []deps.Status
	preflight    []preflight.Result

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Backend      string
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	WatchEnabled bool
	Dependencies []deps.Status
	Preflight    []preflight.Result
}

// EnqueueResult reports what happened to one record passed to Enqueue.
type EnqueueResult struct {
	RecordID int64                `json:"recordId"`
	Outcome  queue.EnqueueOutcome `json:"outcome,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another capturesync daemon instance is already running")

// AcquireLock takes the single-instance lock at path without blocking. The
// daemon process takes it before touching the queue, the pid file, or the
// socket so a second launch leaves a live instance alone.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Option configures optional Daemon behavior.
type Option func(*Daemon)

// WithLock hands the daemon an instance lock already taken by AcquireLock.
func WithLock(lock *flock.Flock) Option {
	return func(d *Daemon) {
		if lock != nil {
			d.lock = lock
			d.lockPath = lock.Path()
			d.heldLock = true
		}
	}
}

// New constructs a daemon with initialized dependencies. notifier may be nil.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, notifier *notifications.Dispatcher, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	validator := content.NewFromConfig(cfg, logger)
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		workflow:  wf,
		notifier:  notifier,
		validator: validator,
		queueSvc:  api.NewQueueService(store),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if cfg.Watch.Enabled {
		debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
		d.watcher = watch.New(cfg.Paths.NotesDir, store, validator, wf, debounce, logger)
	}

	var events *notifications.Broadcaster
	if notifier != nil {
		events = notifier.Broadcaster()
	}
	d.apiSrv = newAPIServer(cfg, apiHandlers{
		status: func(ctx context.Context) api.DaemonStatus { return ToAPIStatus(d.Status(ctx)) },
		queue:  d.queueSvc,
		events: events,
	}, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the upload worker, the notes
// watcher, and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if !d.lock.Locked() {
		ok, err := d.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrAlreadyRunning
		}
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.refreshChecks(d.ctx)

	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}
	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			logging.WarnWithContext(d.logger, "notes watcher unavailable", "watch_unavailable",
				logging.String("path", d.cfg.Paths.NotesDir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "late notes will not re-enqueue no_content records automatically"),
			)
		}
	}

	d.running.Store(true)
	d.logger.Info("capturesync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.cfg.Remote.Backend),
		logging.Bool("watch", d.watcher != nil),
	)
	return nil
}

func (d *Daemon) abortStart() {
	d.releaseLock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.apiSrv.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("capturesync daemon stopped")
}

func (d *Daemon) releaseLock() {
	if d.heldLock {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) refreshChecks(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	results := preflight.RunAll(checkCtx, d.cfg)
	dependencies := preflight.CheckSystemDeps(d.cfg)

	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "uploads may fail until this is fixed"),
		)
	}
	for _, dep := range dependencies {
		if !dep.Available && !dep.Optional {
			logging.WarnWithContext(d.logger, "required dependency missing", "dependency_missing",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail),
			)
		}
	}

	d.checksMu.Lock()
	d.preflight = results
	d.dependencies = dependencies
	d.checksMu.Unlock()
}

// Enqueue schedules each record for upload. Unknown records are reported per
// id rather than failing the batch.
func (d *Daemon) Enqueue(ctx context.Context, recordIDs []int64) ([]EnqueueResult, error) {
	if len(recordIDs) == 0 {
		return nil, errors.New("at least one record id is required")
	}
	results := make([]EnqueueResult, 0, len(recordIDs))
	for _, id := range recordIDs {
		outcome, err := d.workflow.Enqueue(ctx, id)
		switch {
		case errors.Is(err, queue.ErrRecordNotFound):
			results = append(results, EnqueueResult{RecordID: id, Error: "record not found"})
		case err != nil:
			return results, fmt.Errorf("enqueue record %d: %w", id, err)
		default:
			results = append(results, EnqueueResult{RecordID: id, Outcome: outcome})
		}
	}
	return results, nil
}

// AddRecord registers a capture record with optional recording references and
// enqueues it when enqueue is set.
func (d *Daemon) AddRecord(ctx context.Context, params queue.NewRecordParams, recordings []string, enqueue bool) (*queue.Record, error) {
	rec, err := d.store.NewRecord(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, path := range recordings {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := d.store.AddRecording(ctx, rec.ID, rec.SessionID, path, 0); err != nil {
			return rec, fmt.Errorf("add recording %q: %w", path, err)
		}
	}
	d.logger.Info("record registered",
		logging.Int64(logging.FieldRecordID, rec.ID),
		logging.String("title", rec.Title),
		logging.String("bucket", rec.DateBucket),
		logging.Int("recordings", len(recordings)),
	)
	if enqueue {
		if _, err := d.workflow.Enqueue(ctx, rec.ID); err != nil {
			return rec, err
		}
	}
	return d.store.GetRecord(ctx, rec.ID)
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx, statuses...)
}

// QueueStats returns item counts keyed by every queue status.
func (d *Daemon) QueueStats(ctx context.Context) (map[string]int, error) {
	return d.queueSvc.Stats(ctx)
}

// RetryFailed moves failed items (optionally a subset by record id) back to
// pending and wakes the worker.
func (d *Daemon) RetryFailed(ctx context.Context, recordIDs []int64) (api.RetryResults, error) {
	var (
		result api.RetryResults
		err    error
	)
	if len(recordIDs) == 0 {
		result.UpdatedCount, err = d.store.RetryFailed(ctx)
	} else {
		result, err = api.RetryFailedRecords(ctx, queueActions{svc: d.queueSvc, store: d.store}, recordIDs)
	}
	if err != nil {
		return api.RetryResults{}, err
	}
	if result.UpdatedCount > 0 {
		d.logger.Info("failed uploads requeued",
			logging.Int64("count", result.UpdatedCount),
			logging.String(logging.FieldEventType, "retry_failed"),
		)
		d.workflow.Wake()
	}
	return result, nil
}

// Record returns a record with its queue row and recordings, or nil.
func (d *Daemon) Record(ctx context.Context, id int64) (*api.RecordDetail, error) {
	return d.queueSvc.Record(ctx, id)
}

// InspectRecord validates a record's local content without uploading.
func (d *Daemon) InspectRecord(ctx context.Context, id int64) (content.Report, error) {
	rec, err := d.store.GetRecord(ctx, id)
	if err != nil {
		return content.Report{}, err
	}
	if rec == nil {
		return content.Report{}, queue.ErrRecordNotFound
	}
	recordings, err := d.store.RecordingsFor(ctx, id)
	if err != nil {
		return content.Report{}, err
	}
	return d.validator.Validate(ctx, rec, recordings)
}

// Events returns recorded status events newer than since, capped at limit
// newest entries when limit > 0.
func (d *Daemon) Events(since int64, limit int) []notifications.StatusEvent {
	if d.notifier == nil {
		return nil
	}
	events := d.notifier.Broadcaster().Since(since)
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

// CheckIntegrity runs the persisted-state consistency pass.
func (d *Daemon) CheckIntegrity(ctx context.Context) ([]queue.Anomaly, error) {
	anomalies, err := d.workflow.CheckIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	if len(anomalies) > 0 {
		d.workflow.Wake()
	}
	return anomalies, nil
}

// Drain nudges the upload worker to process the queue now.
func (d *Daemon) Drain() {
	d.workflow.Wake()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.checksMu.RLock()
	dependencies := append([]deps.Status(nil), d.dependencies...)
	checks := append([]preflight.Result(nil), d.preflight...)
	d.checksMu.RUnlock()

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Backend:      d.cfg.Remote.Backend,
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		WatchEnabled: d.watcher != nil,
		Dependencies: dependencies,
		Preflight:    checks,
	}
}

// ToAPIStatus converts daemon status into its API payload.
func ToAPIStatus(status Status) api.DaemonStatus {
	dependencies := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		dependencies[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	var checks []api.CheckStatus
	for _, result := range status.Preflight {
		checks = append(checks, api.CheckStatus{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Backend:      status.Backend,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: dependencies,
		Preflight:    checks,
		WatchEnabled: status.WatchEnabled,
	}
}

type queueActions struct {
	svc   *api.QueueService
	store *queue.Store
}

func (q queueActions) RecordItem(ctx context.Context, recordID int64) (*api.QueueItem, error) {
	return q.svc.RecordItem(ctx, recordID)
}

func (q queueActions) Retry(ctx context.Context, recordIDs []int64) (int64, error) {
	return q.store.RetryFailed(ctx, recordIDs...)
}

// QueueHealth returns aggregate queue counts.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}
