package notifications

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"capturesync/internal/config"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
)

const defaultBufferSize = 256

// Dispatcher is the fire-and-forget front of the notification pipeline.
type Dispatcher struct {
	events      chan StatusEvent
	broadcaster *Broadcaster
	service     Service
	logger      *slog.Logger

	notifyAuth      bool
	notifyFailures  bool
	notifyCompleted bool
	sendTimeout     time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	started atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewDispatcher wires the broadcaster and push service. A nil service
// disables push notifications; a nil broadcaster gets a fresh one.
func NewDispatcher(cfg *config.Config, service Service, broadcaster *Broadcaster, logger *slog.Logger) *Dispatcher {
	size := defaultBufferSize
	d := &Dispatcher{
		broadcaster:     broadcaster,
		service:         service,
		logger:          logging.NewComponentLogger(logger, "notifier"),
		notifyAuth:      true,
		notifyFailures:  true,
		notifyCompleted: false,
		sendTimeout:     10 * time.Second,
		done:            make(chan struct{}),
	}
	if cfg != nil {
		if cfg.Notifications.BufferSize > 0 {
			size = cfg.Notifications.BufferSize
		}
		d.notifyAuth = cfg.Notifications.AuthRequired
		d.notifyFailures = cfg.Notifications.Failures
		d.notifyCompleted = cfg.Notifications.Completions
		if cfg.Notifications.RequestTimeout > 0 {
			d.sendTimeout = time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		}
	}
	if d.broadcaster == nil {
		d.broadcaster = NewBroadcaster(0)
	}
	if d.service == nil {
		d.service = noopService{}
	}
	d.events = make(chan StatusEvent, size)
	return d
}

// Broadcaster exposes the in-process sink for subscribers.
func (d *Dispatcher) Broadcaster() *Broadcaster {
	return d.broadcaster
}

// Start launches the delivery goroutine. It exits after Stop or when ctx ends.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.started.CompareAndSwap(false, true) {
		go d.run(ctx)
	}
}

// Stop refuses further events, delivers what is buffered, and waits.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	if d.started.Load() {
		<-d.done
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Notify broadcasts a status transition.
func (d *Dispatcher) Notify(recordID int64, status queue.UploadStatus) {
	d.Emit(StatusEvent{Type: TypeStatusChanged, RecordID: recordID, Status: status})
}

// AuthRequired asks the operator to re-link the remote account.
func (d *Dispatcher) AuthRequired(recordID int64) {
	d.Emit(StatusEvent{Type: TypeAuthRequired, RecordID: recordID})
}

// Emit queues ev without blocking. A full buffer drops it.
func (d *Dispatcher) Emit(ev StatusEvent) {
	if d == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
		logging.WarnWithContext(d.logger, "status event dropped", "notify_dropped",
			logging.Int64(logging.FieldRecordID, ev.RecordID),
			logging.String("status", string(ev.Status)),
			logging.String(logging.FieldErrorHint, "raise notifications.buffer_size if this repeats"),
			logging.String(logging.FieldImpact, "observers miss one transition"),
		)
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev StatusEvent) {
	d.broadcaster.Publish(ev)

	event, data, ok := d.pushFor(ev)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()
	if err := d.service.Publish(sendCtx, event, data); err != nil {
		logging.WarnWithContext(d.logger, "push notification failed", "notify_failed",
			logging.Int64(logging.FieldRecordID, ev.RecordID),
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "operator was not alerted"),
		)
	}
}

func (d *Dispatcher) pushFor(ev StatusEvent) (Event, Payload, bool) {
	data := Payload{"recordId": ev.RecordID, "title": ev.Title, "error": ev.Error}
	switch {
	case ev.Type == TypeIntegrityRequeued && d.notifyFailures:
		return EventIntegrityRepaired, Payload{"recordId": ev.RecordID, "title": ev.Title, "reason": ev.Error}, true
	case ev.Type == TypeAuthRequired && d.notifyAuth:
		return EventAuthRequired, data, true
	case ev.Type == TypeStatusChanged && ev.Status == queue.UploadFailed && d.notifyFailures:
		return EventUploadFailed, data, true
	case ev.Type == TypeStatusChanged && ev.Status == queue.UploadCompleted && d.notifyCompleted:
		return EventUploadCompleted, data, true
	default:
		return "", nil, false
	}
}
