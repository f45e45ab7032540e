package workflow

import (
	"context"
	"fmt"

	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
)

// RecoverySummary reports what startup recovery changed.
type RecoverySummary struct {
	Reset    []int64 `json:"reset"`
	Enqueued []int64 `json:"enqueued"`
}

// Recover returns interrupted items to pending and enqueues records that were
// never queued but have local content. Interrupted uploads restart from
// scratch; nothing about a partial transfer is resumed.
func (m *Manager) Recover(ctx context.Context) (RecoverySummary, error) {
	var summary RecoverySummary

	ids, err := m.store.ResetProcessing(ctx)
	if err != nil {
		return summary, fmt.Errorf("reset processing items: %w", err)
	}
	for _, id := range ids {
		rec, err := m.store.GetRecord(ctx, id)
		if err != nil || rec == nil {
			continue
		}
		logger := m.logger.With(logging.Int64(logging.FieldRecordID, id))
		m.setRecordStatus(ctx, logger, rec, queue.UploadPending, "")
		logger.Info("interrupted upload reset to pending",
			logging.String(logging.FieldEventType, "recovery_reset"),
		)
		summary.Reset = append(summary.Reset, id)
	}

	orphans, err := m.store.RecordsWithoutQueue(ctx)
	if err != nil {
		return summary, fmt.Errorf("find unqueued records: %w", err)
	}
	for _, rec := range orphans {
		report, err := m.validate(ctx, rec)
		if err != nil {
			m.logger.Warn("skipping unqueued record; content check failed",
				logging.Int64(logging.FieldRecordID, rec.ID),
				logging.Error(err),
			)
			continue
		}
		if !report.HasContent() {
			continue
		}
		if _, err := m.store.Enqueue(ctx, rec.ID); err != nil {
			return summary, fmt.Errorf("enqueue record %d: %w", rec.ID, err)
		}
		summary.Enqueued = append(summary.Enqueued, rec.ID)
	}

	if len(summary.Reset) > 0 || len(summary.Enqueued) > 0 {
		m.logger.Info("startup recovery finished",
			logging.Int("reset", len(summary.Reset)),
			logging.Int("enqueued", len(summary.Enqueued)),
			logging.String(logging.FieldEventType, "recovery_complete"),
		)
		m.Wake()
	}
	return summary, nil
}

// CheckIntegrity finds records whose status contradicts their data, resets
// each to pending, and enqueues it again.
func (m *Manager) CheckIntegrity(ctx context.Context) ([]queue.Anomaly, error) {
	anomalies, err := m.store.CompletedAnomalies(ctx)
	if err != nil {
		return nil, err
	}

	empty, err := m.store.ListRecords(ctx, queue.UploadNoContent)
	if err != nil {
		return nil, err
	}
	for _, rec := range empty {
		report, err := m.validate(ctx, rec)
		if err != nil {
			continue
		}
		if files := localFiles(report.Files()); files > 0 {
			anomalies = append(anomalies, queue.Anomaly{
				RecordID: rec.ID,
				Kind:     queue.AnomalyNoContentWithFiles,
				Detail:   fmt.Sprintf("no_content but %d local files exist", files),
			})
		}
	}

	for _, anomaly := range anomalies {
		if err := m.repair(ctx, anomaly); err != nil {
			return anomalies, err
		}
	}
	if len(anomalies) > 0 {
		m.Wake()
	}
	return anomalies, nil
}

func (m *Manager) repair(ctx context.Context, anomaly queue.Anomaly) error {
	logger := m.logger.With(logging.Int64(logging.FieldRecordID, anomaly.RecordID))
	rec, err := m.store.GetRecord(ctx, anomaly.RecordID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	m.setRecordStatus(ctx, logger, rec, queue.UploadPending, "")
	if _, err := m.store.Enqueue(ctx, rec.ID); err != nil {
		return fmt.Errorf("requeue record %d: %w", rec.ID, err)
	}
	logging.WarnWithContext(logger, "integrity anomaly requeued", "integrity_requeued",
		logging.String("anomaly", string(anomaly.Kind)),
		logging.String("detail", anomaly.Detail),
		logging.String(logging.FieldErrorHint, "the record uploads again on the next pass"),
		logging.String(logging.FieldImpact, "remote copy may have been incomplete"),
		logging.Alert("integrity"),
	)
	if m.notifier != nil {
		m.notifier.Emit(notifications.StatusEvent{
			Type:     notifications.TypeIntegrityRequeued,
			RecordID: rec.ID,
			Status:   queue.UploadPending,
			Title:    rec.Title,
			Error:    anomaly.Detail,
		})
	}
	return nil
}

func localFiles(files []content.Candidate) int {
	n := 0
	for _, file := range files {
		if !file.IsInline() {
			n++
		}
	}
	return n
}
