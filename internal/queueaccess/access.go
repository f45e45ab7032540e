package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"capturesync/internal/api"
	"capturesync/internal/config"
	"capturesync/internal/content"
	"capturesync/internal/daemon"
	"capturesync/internal/ipc"
	"capturesync/internal/queue"
)

// Access provides queue and record operations regardless of IPC or direct
// store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Retry(ctx context.Context, ids []int64) (api.RetryResults, error)
	Enqueue(ctx context.Context, ids []int64) ([]daemon.EnqueueResult, error)
	AddRecord(ctx context.Context, req ipc.AddRecordRequest) (api.Record, error)
	// Record returns nil detail when the record does not exist.
	Record(ctx context.Context, id int64, inspect bool) (*api.RecordDetail, *content.Report, error)
	// Online reports whether calls reach the running daemon.
	Online() bool
}

// --- IPC access ---

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Online() bool { return true }

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.QueueStats()
	if err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

func (a *ipcAccess) Health(_ context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueStats()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return resp.Health, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (api.RetryResults, error) {
	resp, err := a.client.RetryFailed(ids)
	if err != nil {
		return api.RetryResults{}, err
	}
	return resp.Result, nil
}

func (a *ipcAccess) Enqueue(_ context.Context, ids []int64) ([]daemon.EnqueueResult, error) {
	resp, err := a.client.Enqueue(ids)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (a *ipcAccess) AddRecord(_ context.Context, req ipc.AddRecordRequest) (api.Record, error) {
	resp, err := a.client.AddRecord(req)
	if err != nil {
		return api.Record{}, err
	}
	return resp.Record, nil
}

func (a *ipcAccess) Record(_ context.Context, id int64, inspect bool) (*api.RecordDetail, *content.Report, error) {
	resp, err := a.client.Record(id, inspect)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &resp.Detail, resp.Report, nil
}

// --- Store access ---

type storeAccess struct {
	store     *queue.Store
	service   *api.QueueService
	validator *content.Validator
}

// NewStoreAccess returns an Access backed by direct database access. Record
// inspection validates content with cfg's notes tree and whitelists.
func NewStoreAccess(cfg *config.Config, store *queue.Store, logger *slog.Logger) Access {
	return &storeAccess{
		store:     store,
		service:   api.NewQueueService(store),
		validator: content.NewFromConfig(cfg, logger),
	}
}

func (a *storeAccess) Online() bool { return false }

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	filters := make([]queue.Status, 0, len(statuses))
	for _, s := range statuses {
		parsed, ok := queue.ParseStatus(s)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", s)
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (api.RetryResults, error) {
	if len(ids) == 0 {
		updated, err := a.store.RetryFailed(ctx)
		return api.RetryResults{UpdatedCount: updated}, err
	}
	return api.RetryFailedRecords(ctx, storeRetryActions{a}, ids)
}

type storeRetryActions struct {
	a *storeAccess
}

func (s storeRetryActions) RecordItem(ctx context.Context, recordID int64) (*api.QueueItem, error) {
	return s.a.service.RecordItem(ctx, recordID)
}

func (s storeRetryActions) Retry(ctx context.Context, ids []int64) (int64, error) {
	return s.a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Enqueue(ctx context.Context, ids []int64) ([]daemon.EnqueueResult, error) {
	results := make([]daemon.EnqueueResult, 0, len(ids))
	for _, id := range ids {
		outcome, err := a.store.Enqueue(ctx, id)
		switch {
		case errors.Is(err, queue.ErrRecordNotFound):
			results = append(results, daemon.EnqueueResult{RecordID: id, Error: "record not found"})
		case err != nil:
			return results, err
		default:
			results = append(results, daemon.EnqueueResult{RecordID: id, Outcome: outcome})
		}
	}
	return results, nil
}

func (a *storeAccess) AddRecord(ctx context.Context, req ipc.AddRecordRequest) (api.Record, error) {
	rec, err := a.store.NewRecord(ctx, queue.NewRecordParams{
		Title:      req.Title,
		FolderName: req.FolderName,
		DateBucket: req.DateBucket,
		SessionID:  req.SessionID,
		NoteText:   req.NoteText,
	})
	if err != nil {
		return api.Record{}, err
	}
	for _, path := range req.Recordings {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := a.store.AddRecording(ctx, rec.ID, rec.SessionID, path, 0); err != nil {
			return api.FromRecord(rec), fmt.Errorf("add recording %q: %w", path, err)
		}
	}
	if req.Enqueue {
		if _, err := a.store.Enqueue(ctx, rec.ID); err != nil {
			return api.FromRecord(rec), err
		}
	}
	stored, err := a.store.GetRecord(ctx, rec.ID)
	if err != nil || stored == nil {
		return api.FromRecord(rec), err
	}
	return api.FromRecord(stored), nil
}

func (a *storeAccess) Record(ctx context.Context, id int64, inspect bool) (*api.RecordDetail, *content.Report, error) {
	detail, err := a.service.Record(ctx, id)
	if err != nil || detail == nil {
		return nil, nil, err
	}
	if !inspect {
		return detail, nil, nil
	}
	rec, err := a.store.GetRecord(ctx, id)
	if err != nil || rec == nil {
		return detail, nil, err
	}
	recordings, err := a.store.RecordingsFor(ctx, id)
	if err != nil {
		return detail, nil, err
	}
	report, err := a.validator.Validate(ctx, rec, recordings)
	if err != nil {
		return detail, nil, err
	}
	return detail, &report, nil
}
