package workflow

import (
	"context"
	"log/slog"

	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
)

// setRecordStatus persists a record status and broadcasts the transition.
// detail travels with failure events to the push notification.
func (m *Manager) setRecordStatus(ctx context.Context, logger *slog.Logger, rec *queue.Record, status queue.UploadStatus, detail string) {
	if err := m.store.SetUploadStatus(ctx, rec.ID, status, ""); err != nil {
		logger.Error("failed to update record upload status",
			logging.String("upload_status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "record_status_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	rec.UploadStatus = status
	m.emit(rec, status, detail)
}

func (m *Manager) emit(rec *queue.Record, status queue.UploadStatus, detail string) {
	if m.notifier == nil || rec == nil {
		return
	}
	m.notifier.Emit(notifications.StatusEvent{
		Type:     notifications.TypeStatusChanged,
		RecordID: rec.ID,
		Status:   status,
		Title:    rec.Title,
		Error:    detail,
	})
}
