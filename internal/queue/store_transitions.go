package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MarkCompleted finalizes an item.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.transition(ctx, "mark completed",
		`UPDATE upload_queue SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		StatusCompleted, formatTime(time.Now()), id,
	)
}

// RecordFailure counts a failed attempt. The item returns to pending with
// lastError, or becomes failed once attempts reaches maxRetries. The updated
// row is returned so callers can see which branch was taken.
func (s *Store) RecordFailure(ctx context.Context, id int64, lastError string, maxRetries int) (*Item, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var item *Item
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE upload_queue
             SET attempts = attempts + 1,
                 status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
                 last_error = ?, available_at = ?, updated_at = ?
             WHERE id = ?
             RETURNING `+itemColumns,
			maxRetries, StatusFailed, StatusPending,
			nullableString(strings.TrimSpace(lastError)), now, now, id,
		)
		var scanErr error
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record failure: item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return item, nil
}

// DeferPartial returns an item to pending without spending an attempt and
// holds it back until availableAt. The consumed free pass is counted.
func (s *Store) DeferPartial(ctx context.Context, id int64, lastError string, availableAt time.Time) error {
	return s.transition(ctx, "defer partial",
		`UPDATE upload_queue
         SET status = ?, partial_passes = partial_passes + 1, last_error = ?,
             available_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusPending, nullableString(strings.TrimSpace(lastError)), formatTime(availableAt), formatTime(time.Now()), id,
	)
}

// ReleaseForAuth returns an item to pending after an authentication failure.
// The attempt counter is left unchanged.
func (s *Store) ReleaseForAuth(ctx context.Context, id int64, lastError string) error {
	now := formatTime(time.Now())
	return s.transition(ctx, "release for auth",
		`UPDATE upload_queue SET status = ?, last_error = ?, available_at = ?, updated_at = ? WHERE id = ?`,
		StatusPending, nullableString(strings.TrimSpace(lastError)), now, now, id,
	)
}

// ResetProcessing moves every processing item back to pending and returns the
// affected record ids. Used at startup; the next pass restarts each upload
// from the beginning.
func (s *Store) ResetProcessing(ctx context.Context) ([]int64, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var recordIDs []int64
	err := retryOnBusy(ctx, func() error {
		recordIDs = recordIDs[:0]
		rows, err := s.db.QueryContext(
			ctx,
			`UPDATE upload_queue SET status = ?, available_at = ?, updated_at = ?
             WHERE status = ?
             RETURNING record_id`,
			StatusPending, now, now, StatusProcessing,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			recordIDs = append(recordIDs, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("reset processing items: %w", err)
	}
	return recordIDs, nil
}

// RetryFailed moves failed items (all, or the given record ids) back to
// pending with a fresh attempt budget and resets their records to pending.
func (s *Store) RetryFailed(ctx context.Context, recordIDs ...int64) (int64, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())

	filter := ""
	filterArgs := []any{}
	if len(recordIDs) > 0 {
		filter = ` AND record_id IN (` + makePlaceholders(len(recordIDs)) + `)`
		filterArgs = int64Args(recordIDs)
	}

	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		recordArgs := append([]any{UploadPending, now, StatusFailed}, filterArgs...)
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE records SET upload_status = ?, uploaded_at = NULL, updated_at = ?
             WHERE id IN (SELECT record_id FROM upload_queue WHERE status = ?`+filter+`)`,
			recordArgs...,
		); err != nil {
			return err
		}
		itemArgs := append([]any{StatusPending, now, now, StatusFailed}, filterArgs...)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE upload_queue
             SET status = ?, attempts = 0, partial_passes = 0, last_error = NULL,
                 available_at = ?, updated_at = ?
             WHERE status = ?`+filter,
			itemArgs...,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return affected, nil
}

func (s *Store) transition(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: item not found", op)
	}
	return nil
}
