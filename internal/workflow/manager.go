package workflow

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"capturesync/internal/config"
	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
	"capturesync/internal/upload"
)

// Connector yields an authenticated remote. It is called at most once per
// drain pass, and only when an item has something to upload.
type Connector interface {
	Connect(ctx context.Context) (upload.Remote, error)
}

// Validator reports a record's uploadable artifacts.
type Validator interface {
	Validate(ctx context.Context, rec *queue.Record, recordings []queue.Recording) (content.Report, error)
}

// SleepFunc blocks for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Manager coordinates the upload queue.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	validator Validator
	connector Connector
	notifier  *notifications.Dispatcher
	logger    *slog.Logger

	maxRetries   int
	backoffBase  float64
	partialDelay time.Duration
	pollInterval time.Duration
	errorRetry   time.Duration
	sleep        SleepFunc
	now          func() time.Time

	wake chan struct{}

	mu        sync.RWMutex
	running    bool
	draining   bool
	authHalted bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastItem  *queue.Item
	lastDrain DrainSummary
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithValidator replaces the filesystem validator.
func WithValidator(v Validator) ManagerOption {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithNotifier attaches the status dispatcher.
func WithNotifier(d *notifications.Dispatcher) ManagerOption {
	return func(m *Manager) {
		m.notifier = d
	}
}

// WithSleep overrides how backoff waits are performed (used in tests).
func WithSleep(fn SleepFunc) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

// WithClock overrides the clock used for claim availability.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs the upload worker.
func NewManager(cfg *config.Config, store *queue.Store, connector Connector, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		connector:    connector,
		logger:       logging.NewComponentLogger(logger, "upload-worker"),
		maxRetries:   cfg.Upload.MaxRetries,
		backoffBase:  float64(cfg.Upload.BackoffBaseSeconds),
		partialDelay: time.Duration(cfg.Upload.PartialRetryDelaySeconds) * time.Second,
		pollInterval: time.Duration(cfg.Upload.PollIntervalSeconds) * time.Second,
		errorRetry:   time.Duration(cfg.Upload.ErrorRetryIntervalSeconds) * time.Second,
		sleep:        sleepContext,
		now:          time.Now,
		wake:         make(chan struct{}, 1),
	}
	if m.maxRetries < 1 {
		m.maxRetries = 1
	}
	if m.backoffBase < 1 {
		m.backoffBase = 2
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 15 * time.Second
	}
	if m.errorRetry <= 0 {
		m.errorRetry = 10 * time.Second
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validator == nil {
		m.validator = content.NewFromConfig(cfg, logger)
	}
	return m
}

// Backoff returns the wait after a failed attempt: base^attempts seconds.
func (m *Manager) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	seconds := math.Pow(m.backoffBase, float64(attempts))
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
