package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, record_id, status, attempts, last_error, available_at, partial_passes, created_at, updated_at"

const recordColumns = "id, title, folder_name, date_bucket, session_id, note_text, upload_status, remote_folder_id, uploaded_at, created_at, updated_at"

const joinedRecordColumns = "r.id, r.title, r.folder_name, r.date_bucket, r.session_id, r.note_text, r.upload_status, r.remote_folder_id, r.uploaded_at, r.created_at, r.updated_at"

const recordingColumns = "id, record_id, session_id, path, duration_seconds, created_at"

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item          Item
		statusStr     string
		lastError     sql.NullString
		availableRaw  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		attempts      sql.NullInt64
		partialPasses sql.NullInt64
	)
	if err := scanner.Scan(
		&item.ID,
		&item.RecordID,
		&statusStr,
		&attempts,
		&lastError,
		&availableRaw,
		&partialPasses,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(statusStr)
	item.Attempts = int(attempts.Int64)
	item.PartialPasses = int(partialPasses.Int64)
	item.LastError = lastError.String
	if t, err := parseTimeString(availableRaw.String); err == nil {
		item.AvailableAt = t
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = t
	}
	return &item, nil
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec         Record
		folderName  sql.NullString
		sessionID   sql.NullString
		noteText    sql.NullString
		statusStr   string
		remoteID    sql.NullString
		uploadedRaw sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Title,
		&folderName,
		&rec.DateBucket,
		&sessionID,
		&noteText,
		&statusStr,
		&remoteID,
		&uploadedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.FolderName = folderName.String
	rec.SessionID = sessionID.String
	rec.NoteText = noteText.String
	rec.UploadStatus = UploadStatus(statusStr)
	rec.RemoteFolderID = remoteID.String
	if uploadedRaw.Valid {
		if t, err := parseTimeString(uploadedRaw.String); err == nil {
			rec.UploadedAt = &t
		}
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func scanRecording(scanner rowScanner) (Recording, error) {
	var (
		rec        Recording
		sessionID  sql.NullString
		duration   sql.NullFloat64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &rec.RecordID, &sessionID, &rec.Path, &duration, &createdRaw); err != nil {
		return Recording{}, err
	}
	rec.SessionID = sessionID.String
	rec.DurationSeconds = duration.Float64
	if t, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
