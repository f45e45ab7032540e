package queue

import (
	"strings"
	"time"

	"capturesync/internal/textutil"
)

// Status represents the lifecycle of an upload queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns every queue status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// UploadStatus is the denormalized per-record status read by external observers.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadPartial   UploadStatus = "partial"
	UploadNoContent UploadStatus = "no_content"
	UploadFailed    UploadStatus = "failed"
)

// Valid reports whether s is a known upload status.
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadPending, UploadUploading, UploadCompleted, UploadPartial, UploadNoContent, UploadFailed:
		return true
	}
	return false
}

// Item is a row of the upload queue.
type Item struct {
	ID            int64
	RecordID      int64
	Status        Status
	Attempts      int
	LastError     string
	AvailableAt   time.Time
	PartialPasses int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Record is the logical unit being synchronized.
type Record struct {
	ID             int64
	Title          string
	FolderName     string
	DateBucket     string
	SessionID      string
	NoteText       string
	UploadStatus   UploadStatus
	RemoteFolderID string
	UploadedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Slug returns the canonical directory name for the record: the stored folder
// name when set, otherwise the slugified title.
func (r *Record) Slug() string {
	if r == nil {
		return ""
	}
	if folder := strings.TrimSpace(r.FolderName); folder != "" {
		return folder
	}
	return textutil.Slugify(r.Title)
}

// Recording is a capture file reference known to the recording workflow.
type Recording struct {
	ID              int64
	RecordID        int64
	SessionID       string
	Path            string
	DurationSeconds float64
	CreatedAt       time.Time
}

// NewRecordParams describes a record to insert. ID is optional; callers that
// mirror records from the capture application pass its identifier.
type NewRecordParams struct {
	ID         int64
	Title      string
	FolderName string
	DateBucket string
	SessionID  string
	NoteText   string
	CreatedAt  time.Time
}

// EnqueueOutcome describes what Enqueue did with a record.
type EnqueueOutcome string

const (
	EnqueueInserted      EnqueueOutcome = "inserted"
	EnqueueRevived       EnqueueOutcome = "revived"
	EnqueueAlreadyQueued EnqueueOutcome = "already_queued"
	EnqueueSkipped       EnqueueOutcome = "skipped_completed"
)

// HealthSummary aggregates queue counts for diagnostic output.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// AnomalyKind names a data-integrity violation on a record.
type AnomalyKind string

const (
	AnomalyUploadedBeforeCreated AnomalyKind = "uploaded_before_created"
	AnomalyCompletedWithoutRef   AnomalyKind = "completed_without_folder"
	AnomalyNoContentWithFiles    AnomalyKind = "no_content_with_files"
)

// Anomaly is a record whose persisted status contradicts its data.
type Anomaly struct {
	RecordID int64       `json:"record_id"`
	Kind     AnomalyKind `json:"kind"`
	Detail   string      `json:"detail"`
}
