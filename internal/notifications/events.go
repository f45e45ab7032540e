package notifications

import (
	"time"

	"capturesync/internal/queue"
)

// EventType names an outbound status event.
type EventType string

const (
	// TypeStatusChanged reports any record upload status transition.
	TypeStatusChanged EventType = "upload_status_changed"
	// TypeAuthRequired asks the operator to re-link the remote account.
	TypeAuthRequired EventType = "authentication_required"
	// TypeIntegrityRequeued reports a record reset by the integrity pass.
	TypeIntegrityRequeued EventType = "integrity_requeued"
)

// StatusEvent is the payload observers receive.
type StatusEvent struct {
	Seq       int64              `json:"seq"`
	Type      EventType          `json:"type"`
	RecordID  int64              `json:"recordId"`
	Status    queue.UploadStatus `json:"status,omitempty"`
	Title     string             `json:"title,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
