package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateBucketLayout = "2006-01-02"

// NewRecord inserts a record in the pending upload state.
func (s *Store) NewRecord(ctx context.Context, params NewRecordParams) (*Record, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	bucket := strings.TrimSpace(params.DateBucket)
	if _, err := time.Parse(dateBucketLayout, bucket); err != nil {
		return nil, fmt.Errorf("%w: date bucket %q must be YYYY-MM-DD", ErrInvalidRecord, params.DateBucket)
	}
	created := params.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	now := formatTime(time.Now())

	if params.ID < 0 {
		return nil, fmt.Errorf("%w: id must be positive", ErrInvalidRecord)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO records (
            id, title, folder_name, date_bucket, session_id, note_text,
            upload_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt64(params.ID),
		title,
		nullableString(strings.TrimSpace(params.FolderName)),
		bucket,
		nullableString(strings.TrimSpace(params.SessionID)),
		nullableString(params.NoteText),
		UploadPending,
		formatTime(created),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRecord(ctx, id)
}

// GetRecord fetches a record by identifier. It returns nil when absent.
func (s *Store) GetRecord(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns records filtered by upload status (all when none given), oldest first.
func (s *Store) ListRecords(ctx context.Context, statuses ...UploadStatus) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE upload_status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

// FindRecordByFolder returns the record of dateBucket whose canonical slug is folder.
func (s *Store) FindRecordByFolder(ctx context.Context, dateBucket, folder string) (*Record, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+recordColumns+` FROM records WHERE date_bucket = ? ORDER BY id`,
		strings.TrimSpace(dateBucket),
	)
	if err != nil {
		return nil, fmt.Errorf("records in bucket: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if strings.EqualFold(rec.Slug(), folder) {
			return rec, nil
		}
	}
	return nil, nil
}

// SetNoteText replaces the database-held note text for a record.
func (s *Store) SetNoteText(ctx context.Context, id int64, text string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE records SET note_text = ?, updated_at = ? WHERE id = ?`,
		nullableString(text),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set note text: %w", err)
	}
	return requireAffected(res, id)
}

// SetUploadStatus updates the denormalized status columns of a record.
//
// Completed requires folderRef and stamps uploaded_at, never earlier than the
// record's created_at. Other statuses clear uploaded_at and keep the previous
// folder reference unless a new one is supplied.
func (s *Store) SetUploadStatus(ctx context.Context, id int64, status UploadStatus, folderRef string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown upload status %q", ErrInvalidRecord, status)
	}
	folderRef = strings.TrimSpace(folderRef)
	now := formatTime(time.Now())

	var (
		res sql.Result
		err error
	)
	if status == UploadCompleted {
		if folderRef == "" {
			return ErrMissingFolderRef
		}
		res, err = s.execWithRetry(
			ctx,
			`UPDATE records
             SET upload_status = ?, remote_folder_id = ?,
                 uploaded_at = CASE WHEN ? < created_at THEN created_at ELSE ? END,
                 updated_at = ?
             WHERE id = ?`,
			status, folderRef, now, now, now, id,
		)
	} else {
		res, err = s.execWithRetry(
			ctx,
			`UPDATE records
             SET upload_status = ?, remote_folder_id = COALESCE(?, remote_folder_id),
                 uploaded_at = NULL, updated_at = ?
             WHERE id = ?`,
			status, nullableString(folderRef), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("set upload status: %w", err)
	}
	return requireAffected(res, id)
}

// AddRecording registers a capture file for a record. Re-adding the same path
// updates the session id and duration.
func (s *Store) AddRecording(ctx context.Context, recordID int64, sessionID, path string, durationSeconds float64) (Recording, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Recording{}, fmt.Errorf("%w: recording path is required", ErrInvalidRecord)
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	ctx = ensureContext(ctx)
	var rec Recording
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE id = ?`, recordID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrRecordNotFound
		}
		row := tx.QueryRowContext(
			ctx,
			`INSERT INTO recordings (record_id, session_id, path, duration_seconds, created_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT (record_id, path) DO UPDATE
             SET session_id = excluded.session_id, duration_seconds = excluded.duration_seconds
             RETURNING `+recordingColumns,
			recordID,
			nullableString(strings.TrimSpace(sessionID)),
			path,
			durationSeconds,
			formatTime(time.Now()),
		)
		var scanErr error
		rec, scanErr = scanRecording(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Recording{}, err
		}
		return Recording{}, fmt.Errorf("add recording: %w", err)
	}
	return rec, nil
}

// RecordingsFor returns the recordings registered for a record, oldest first.
func (s *Store) RecordingsFor(ctx context.Context, recordID int64) ([]Recording, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+recordingColumns+` FROM recordings WHERE record_id = ? ORDER BY created_at, id`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("recordings for record: %w", err)
	}
	defer rows.Close()

	var recordings []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
	}
	return nil
}
