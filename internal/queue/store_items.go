package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue schedules a record for upload.
//
// A record whose upload already completed is left alone. A record without a
// queue row gets a pending row; a row that reached completed or failed is
// revived to pending with a fresh attempt budget. Rows already pending or
// processing are untouched, so repeated calls are no-ops.
func (s *Store) Enqueue(ctx context.Context, recordID int64) (EnqueueOutcome, error) {
	ctx = ensureContext(ctx)
	var outcome EnqueueOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var uploadStatus string
		err := tx.QueryRowContext(ctx, `SELECT upload_status FROM records WHERE id = ?`, recordID).Scan(&uploadStatus)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if UploadStatus(uploadStatus) == UploadCompleted {
			outcome = EnqueueSkipped
			return nil
		}

		now := formatTime(time.Now())
		var current string
		err = tx.QueryRowContext(ctx, `SELECT status FROM upload_queue WHERE record_id = ?`, recordID).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO upload_queue (record_id, status, attempts, available_at, partial_passes, created_at, updated_at)
                 VALUES (?, ?, 0, ?, 0, ?, ?)`,
				recordID, StatusPending, now, now, now,
			); err != nil {
				return err
			}
			outcome = EnqueueInserted
		case err != nil:
			return err
		case Status(current) == StatusCompleted || Status(current) == StatusFailed:
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE upload_queue
                 SET status = ?, attempts = 0, last_error = NULL, partial_passes = 0,
                     available_at = ?, updated_at = ?
                 WHERE record_id = ?`,
				StatusPending, now, now, recordID,
			); err != nil {
				return err
			}
			outcome = EnqueueRevived
		default:
			outcome = EnqueueAlreadyQueued
			return nil
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE records SET upload_status = ?, updated_at = ? WHERE id = ? AND upload_status IN (?, ?)`,
			UploadPending, now, recordID, UploadFailed, UploadNoContent,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("enqueue record %d: %w", recordID, err)
	}
	return outcome, nil
}

// ClaimNext atomically moves the oldest claimable pending item to processing.
// It returns nil when nothing is available at now.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (*Item, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)
	var item *Item
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE upload_queue SET status = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM upload_queue
                 WHERE status = ? AND available_at <= ?
                 ORDER BY created_at, id
                 LIMIT 1
             )
             RETURNING `+itemColumns,
			StatusProcessing, stamp, StatusPending, stamp,
		)
		var scanErr error
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", err)
	}
	return item, nil
}

// GetItem fetches a queue item by identifier. It returns nil when absent.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM upload_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ItemForRecord returns the queue row of a record, or nil when it was never enqueued.
func (s *Store) ItemForRecord(ctx context.Context, recordID int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM upload_queue WHERE record_id = ?`, recordID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("item for record: %w", err)
	}
	return item, nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM upload_queue`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return collectItems(rows)
}
