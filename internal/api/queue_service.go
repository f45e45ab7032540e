package api

import (
	"context"

	"capturesync/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetItem(ctx context.Context, id int64) (*queue.Item, error)
	ItemForRecord(ctx context.Context, recordID int64) (*queue.Item, error)
	GetRecord(ctx context.Context, id int64) (*queue.Record, error)
	ListRecords(ctx context.Context, statuses ...queue.UploadStatus) ([]*queue.Record, error)
	RecordingsFor(ctx context.Context, recordID int64) ([]queue.Recording, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items filtered by status, each annotated with its record.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		rec, err := s.store.GetRecord(ctx, item.RecordID)
		if err != nil {
			return nil, err
		}
		out = append(out, FromQueueItem(item, rec))
	}
	return out, nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, item.RecordID)
	if err != nil {
		return nil, err
	}
	dto := FromQueueItem(item, rec)
	return &dto, nil
}

// RecordItem fetches the queue row of a record, or nil when it was never queued.
func (s *QueueService) RecordItem(ctx context.Context, recordID int64) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.ItemForRecord(ctx, recordID)
	if err != nil || item == nil {
		return nil, err
	}
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	dto := FromQueueItem(item, rec)
	return &dto, nil
}

// Records lists records filtered by upload status.
func (s *QueueService) Records(ctx context.Context, statuses ...queue.UploadStatus) ([]Record, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListRecords(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Record returns a record with its queue row and capture files, or nil when
// the record does not exist.
func (s *QueueService) Record(ctx context.Context, id int64) (*RecordDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	detail := RecordDetail{Record: FromRecord(rec)}
	item, err := s.store.ItemForRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if item != nil {
		dto := FromQueueItem(item, rec)
		detail.Item = &dto
	}
	recordings, err := s.store.RecordingsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Recordings = FromRecordings(recordings)
	return &detail, nil
}
