package workflow

import (
	"context"

	"capturesync/internal/logging"
	"capturesync/internal/queue"
)

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running      bool                       `json:"running"`
	Draining     bool                       `json:"draining"`
	LastError    string                     `json:"last_error,omitempty"`
	LastItem     *queue.Item                `json:"last_item,omitempty"`
	LastDrain    DrainSummary               `json:"last_drain"`
	QueueStats   map[queue.Status]int       `json:"queue_stats"`
	UploadStats  map[queue.UploadStatus]int `json:"upload_stats"`
	DroppedEvent int64                      `json:"dropped_events"`
}

// Status returns the latest worker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Draining:  m.draining,
		LastDrain: m.lastDrain,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		copy := *m.lastItem
		summary.LastItem = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats

	uploads, err := m.store.UploadStatusCounts(ctx)
	if err != nil {
		m.logger.Warn("failed to read upload status counts", logging.Error(err))
	}
	summary.UploadStats = uploads

	if m.notifier != nil {
		summary.DroppedEvent = m.notifier.Dropped()
	}
	return summary
}

// Draining reports whether a drain pass is in progress.
func (m *Manager) Draining() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.draining
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(ctx context.Context, id int64) {
	item, err := m.store.GetItem(context.WithoutCancel(ctx), id)
	if err != nil || item == nil {
		return
	}
	m.mu.Lock()
	m.lastItem = item
	m.mu.Unlock()
}
