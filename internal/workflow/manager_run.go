package workflow

import (
	"context"
	"errors"
	"time"

	"capturesync/internal/logging"
	"capturesync/internal/queue"
)

// Start launches the background drain loop. It drains immediately, then again
// whenever Enqueue signals or the poll interval elapses.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("upload worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake nudges the drain loop and lifts an auth halt so the next pass tries
// the credentials again. It never blocks and never starts a second loop.
func (m *Manager) Wake() {
	m.clearAuthHalt()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds a record to the upload queue and wakes the drain loop.
func (m *Manager) Enqueue(ctx context.Context, recordID int64) (queue.EnqueueOutcome, error) {
	outcome, err := m.store.Enqueue(ctx, recordID)
	if err != nil {
		return outcome, err
	}
	logger := m.logger.With(logging.Int64(logging.FieldRecordID, recordID))
	switch outcome {
	case queue.EnqueueInserted, queue.EnqueueRevived:
		if rec, err := m.store.GetRecord(ctx, recordID); err == nil && rec != nil {
			m.emit(rec, rec.UploadStatus, "")
		}
		logger.Info("record queued for upload",
			logging.String("outcome", string(outcome)),
			logging.String(logging.FieldEventType, "upload_enqueued"),
		)
		m.Wake()
	default:
		logger.Debug("enqueue had no effect", logging.String("outcome", string(outcome)))
	}
	return outcome, nil
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		_, err := m.Drain(ctx)
		wait := m.pollInterval
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("drain pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "drain_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			wait = m.errorRetry
		}
		if !m.waitForWork(ctx, wait) {
			return
		}
	}
}

// waitForWork blocks until woken, the timeout passes, or ctx ends.
func (m *Manager) waitForWork(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.wake:
		return true
	case <-timer.C:
		return true
	}
}
