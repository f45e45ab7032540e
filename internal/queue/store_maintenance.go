package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM upload_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// UploadStatusCounts returns records grouped by denormalized upload status.
func (s *Store) UploadStatusCounts(ctx context.Context) (map[UploadStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT upload_status, COUNT(1) FROM records GROUP BY upload_status`)
	if err != nil {
		return nil, fmt.Errorf("upload status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[UploadStatus]int)
	for rows.Next() {
		var status UploadStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RecordsWithoutQueue returns records that were never enqueued and have not
// completed an upload.
func (s *Store) RecordsWithoutQueue(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+joinedRecordColumns+`
         FROM records r
         LEFT JOIN upload_queue q ON q.record_id = r.id
         WHERE q.id IS NULL AND r.upload_status != ?
         ORDER BY r.created_at, r.id`,
		UploadCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("records without queue: %w", err)
	}
	return collectRecords(rows)
}

// CompletedAnomalies finds completed records that violate the completion
// invariant: a folder reference and an upload time not before creation.
func (s *Store) CompletedAnomalies(ctx context.Context) ([]Anomaly, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, remote_folder_id, uploaded_at, created_at FROM records
         WHERE upload_status = ?
           AND (remote_folder_id IS NULL OR remote_folder_id = ''
                OR uploaded_at IS NULL OR uploaded_at < created_at)
         ORDER BY id`,
		UploadCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completed anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []Anomaly
	for rows.Next() {
		var (
			id          int64
			remoteID    sql.NullString
			uploadedRaw sql.NullString
			createdRaw  string
		)
		if err := rows.Scan(&id, &remoteID, &uploadedRaw, &createdRaw); err != nil {
			return nil, err
		}
		if remoteID.String == "" {
			anomalies = append(anomalies, Anomaly{
				RecordID: id,
				Kind:     AnomalyCompletedWithoutRef,
				Detail:   "completed without a remote folder reference",
			})
			continue
		}
		detail := "completed without an upload timestamp"
		if uploadedRaw.Valid {
			detail = fmt.Sprintf("uploaded_at %s precedes created_at %s", displayTime(uploadedRaw.String), displayTime(createdRaw))
		}
		anomalies = append(anomalies, Anomaly{
			RecordID: id,
			Kind:     AnomalyUploadedBeforeCreated,
			Detail:   detail,
		})
	}
	return anomalies, rows.Err()
}

func displayTime(raw string) string {
	if t, err := parseTimeString(raw); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return raw
}
