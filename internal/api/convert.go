package api

import (
	"strings"
	"time"

	"capturesync/internal/queue"
	"capturesync/internal/workflow"
)

// FromQueueItem converts a queue row to its API representation. rec may be
// nil when the owning record is unknown.
func FromQueueItem(item *queue.Item, rec *queue.Record) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:            item.ID,
		RecordID:      item.RecordID,
		Status:        string(item.Status),
		Attempts:      item.Attempts,
		PartialPasses: item.PartialPasses,
		LastError:     strings.TrimSpace(item.LastError),
		AvailableAt:   FormatTime(item.AvailableAt),
		CreatedAt:     FormatTime(item.CreatedAt),
		UpdatedAt:     FormatTime(item.UpdatedAt),
	}
	if rec != nil {
		dto.RecordTitle = rec.Title
		dto.UploadStatus = string(rec.UploadStatus)
	}
	return dto
}

// FromRecord converts a record to its API representation.
func FromRecord(rec *queue.Record) Record {
	if rec == nil {
		return Record{}
	}
	dto := Record{
		ID:             rec.ID,
		Title:          rec.Title,
		Slug:           rec.Slug(),
		DateBucket:     rec.DateBucket,
		SessionID:      rec.SessionID,
		HasNoteText:    strings.TrimSpace(rec.NoteText) != "",
		UploadStatus:   string(rec.UploadStatus),
		RemoteFolderID: rec.RemoteFolderID,
		CreatedAt:      FormatTime(rec.CreatedAt),
		UpdatedAt:      FormatTime(rec.UpdatedAt),
	}
	if rec.UploadedAt != nil {
		dto.UploadedAt = FormatTime(*rec.UploadedAt)
	}
	return dto
}

// FromRecords converts a slice of records into API DTOs.
func FromRecords(records []*queue.Record) []Record {
	if len(records) == 0 {
		return nil
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromRecordings converts capture file references.
func FromRecordings(recordings []queue.Recording) []Recording {
	if len(recordings) == 0 {
		return nil
	}
	out := make([]Recording, 0, len(recordings))
	for _, r := range recordings {
		out = append(out, Recording{SessionID: r.SessionID, Path: r.Path, DurationSeconds: r.DurationSeconds})
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:       summary.Running,
		Draining:      summary.Draining,
		QueueStats:    MergeQueueStats(summary.QueueStats),
		UploadStats:   MergeUploadStats(summary.UploadStats),
		LastError:     summary.LastError,
		DroppedEvents: summary.DroppedEvent,
		LastDrain: DrainStatus{
			ID:         summary.LastDrain.ID,
			StartedAt:  FormatTime(summary.LastDrain.StartedAt),
			FinishedAt: FormatTime(summary.LastDrain.FinishedAt),
			Completed:  summary.LastDrain.Completed,
			NoContent:  summary.LastDrain.NoContent,
			Retried:    summary.LastDrain.Retried,
			Deferred:   summary.LastDrain.Deferred,
			Failed:     summary.LastDrain.Failed,
			AuthHalted: summary.LastDrain.AuthHalted,
		},
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem, nil)
		wf.LastItem = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// MergeUploadStats produces a string-keyed representation of record upload counts.
func MergeUploadStats(stats map[queue.UploadStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
