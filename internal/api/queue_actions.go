package api

import (
	"context"

	"capturesync/internal/queue"
)

// QueueActionService captures queue operations needed by per-record retry workflows.
type QueueActionService interface {
	RecordItem(ctx context.Context, recordID int64) (*QueueItem, error)
	Retry(ctx context.Context, recordIDs []int64) (int64, error)
}

type RetryOutcome string

const (
	RetryUpdated   RetryOutcome = "retried"
	RetryNotFound  RetryOutcome = "not_found"
	RetryNotFailed RetryOutcome = "not_failed"
)

type RetryResult struct {
	RecordID  int64        `json:"recordId"`
	Outcome   RetryOutcome `json:"outcome"`
	NewStatus string       `json:"newStatus,omitempty"`
}

type RetryResults struct {
	UpdatedCount int64         `json:"updatedCount"`
	Items        []RetryResult `json:"items"`
}

// RetryFailedRecords validates record ids and retries only records whose
// queue row failed.
func RetryFailedRecords(ctx context.Context, service QueueActionService, recordIDs []int64) (RetryResults, error) {
	result := RetryResults{Items: make([]RetryResult, 0, len(recordIDs))}
	for _, id := range recordIDs {
		item, err := service.RecordItem(ctx, id)
		if err != nil {
			return RetryResults{}, err
		}
		if item == nil {
			result.Items = append(result.Items, RetryResult{RecordID: id, Outcome: RetryNotFound})
			continue
		}
		status, ok := queue.ParseStatus(item.Status)
		if !ok || status != queue.StatusFailed {
			result.Items = append(result.Items, RetryResult{RecordID: id, Outcome: RetryNotFailed})
			continue
		}
		updated, err := service.Retry(ctx, []int64{id})
		if err != nil {
			return RetryResults{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, RetryResult{RecordID: id, Outcome: RetryUpdated, NewStatus: string(queue.StatusPending)})
			continue
		}
		result.Items = append(result.Items, RetryResult{RecordID: id, Outcome: RetryNotFailed})
	}
	return result, nil
}
