package api

import (
	"context"
	"errors"
	"testing"
)

type queueActionStub struct {
	items   map[int64]*QueueItem
	retried []int64
}

func (s *queueActionStub) RecordItem(_ context.Context, id int64) (*QueueItem, error) {
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return nil, nil
}

func (s *queueActionStub) Retry(_ context.Context, ids []int64) (int64, error) {
	if len(ids) != 1 {
		return 0, errors.New("expected one id")
	}
	s.retried = append(s.retried, ids[0])
	return 1, nil
}

func TestRetryFailedRecordsOnlyTouchesFailed(t *testing.T) {
	stub := &queueActionStub{
		items: map[int64]*QueueItem{
			1: {ID: 10, RecordID: 1, Status: "failed"},
			2: {ID: 11, RecordID: 2, Status: "pending"},
		},
	}

	result, err := RetryFailedRecords(context.Background(), stub, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("RetryFailedRecords: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("UpdatedCount = %d, want 1", result.UpdatedCount)
	}
	want := []RetryOutcome{RetryUpdated, RetryNotFailed, RetryNotFound}
	for i, outcome := range want {
		if result.Items[i].Outcome != outcome {
			t.Fatalf("record %d outcome = %s, want %s", result.Items[i].RecordID, result.Items[i].Outcome, outcome)
		}
	}
	if len(stub.retried) != 1 || stub.retried[0] != 1 {
		t.Fatalf("expected only record 1 retried, got %v", stub.retried)
	}
}
