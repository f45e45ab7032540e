package ipc

import (
	"capturesync/internal/api"
	"capturesync/internal/content"
	"capturesync/internal/daemon"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
)

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// DaemonStatus mirrors the HTTP API status payload.
type DaemonStatus = api.DaemonStatus

// Envelope carries the caller's request id.
type Envelope struct {
	RequestID string `json:"request_id,omitempty"`
}

// EnqueueRequest schedules records for upload.
type EnqueueRequest struct {
	Envelope
	RecordIDs []int64 `json:"record_ids"`
}

// EnqueueResponse reports per-record outcomes.
type EnqueueResponse struct {
	Results []daemon.EnqueueResult `json:"results"`
}

// AddRecordRequest registers a capture record.
type AddRecordRequest struct {
	Envelope
	Title      string   `json:"title"`
	FolderName string   `json:"folder_name,omitempty"`
	DateBucket string   `json:"date_bucket"`
	SessionID  string   `json:"session_id,omitempty"`
	NoteText   string   `json:"note_text,omitempty"`
	Recordings []string `json:"recordings,omitempty"`
	Enqueue    bool     `json:"enqueue"`
}

// AddRecordResponse returns the stored record.
type AddRecordResponse struct {
	Record api.Record `json:"record"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct {
	Envelope
}

// StatusResponse wraps the daemon status.
type StatusResponse struct {
	Status DaemonStatus `json:"status"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Envelope
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueStatsRequest fetches per-status counts.
type QueueStatsRequest struct {
	Envelope
}

// QueueStatsResponse holds counts keyed by every queue status.
type QueueStatsResponse struct {
	Counts map[string]int      `json:"counts"`
	Health queue.HealthSummary `json:"health"`
}

// RetryFailedRequest retries failed items. An empty list means all failed items.
type RetryFailedRequest struct {
	Envelope
	RecordIDs []int64 `json:"record_ids"`
}

// RetryFailedResponse reports what was requeued.
type RetryFailedResponse struct {
	Result api.RetryResults `json:"result"`
}

// RecordRequest fetches a single record.
type RecordRequest struct {
	Envelope
	ID      int64 `json:"id"`
	Inspect bool  `json:"inspect"`
}

// RecordResponse holds the record detail and, when requested, the content
// report of its local artifacts.
type RecordResponse struct {
	Detail api.RecordDetail `json:"detail"`
	Report *content.Report  `json:"report,omitempty"`
}

// EventsRequest reads recorded status events.
type EventsRequest struct {
	Envelope
	Since int64 `json:"since"`
	Limit int   `json:"limit"`
}

// EventsResponse holds events oldest first.
type EventsResponse struct {
	Events []notifications.StatusEvent `json:"events"`
}

// CheckIntegrityRequest runs the integrity pass.
type CheckIntegrityRequest struct {
	Envelope
}

// CheckIntegrityResponse lists anomalies found and repaired.
type CheckIntegrityResponse struct {
	Anomalies []queue.Anomaly `json:"anomalies"`
}

// DrainRequest nudges the upload worker.
type DrainRequest struct {
	Envelope
}

// DrainResponse acknowledges a drain nudge.
type DrainResponse struct {
	Queued bool `json:"queued"`
}
