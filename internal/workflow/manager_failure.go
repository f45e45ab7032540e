package workflow

import (
	"context"
	"log/slog"
	"strings"

	"capturesync/internal/logging"
	"capturesync/internal/queue"
	"capturesync/internal/services"
)

// handleFailure applies the retry policy for err. rec may be nil when the
// record could not be loaded.
func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, err error) itemResult {
	// Persist the outcome even if the pass is being cancelled.
	ctx = context.WithoutCancel(ctx)
	message := failureMessage(err)
	kind := services.ClassifyFailure(err)

	switch kind {
	case services.FailureAuthExpired:
		return m.handleAuthExpired(ctx, logger, item, rec, message, err)
	case services.FailurePartial:
		if item.PartialPasses == 0 {
			return m.handlePartial(ctx, logger, item, rec, message, err)
		}
		logger.Info("partial upload repeated; counting it as a failed attempt",
			logging.Int("partial_passes", item.PartialPasses),
		)
	}
	return m.handleTransient(ctx, logger, item, rec, message, err)
}

func (m *Manager) handleAuthExpired(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, message string, err error) itemResult {
	if storeErr := m.store.ReleaseForAuth(ctx, item.ID, message); storeErr != nil {
		logger.Error("failed to release item after auth failure", logging.Error(storeErr))
	}
	if rec != nil {
		m.setRecordStatus(ctx, logger, rec, queue.UploadPending, "")
	}
	if m.haltForAuth() && m.notifier != nil {
		m.notifier.AuthRequired(item.RecordID)
	}
	logger.Warn("remote credentials rejected",
		logging.Error(err),
		logging.String(logging.FieldEventType, "upload_auth_expired"),
		logging.String(logging.FieldErrorHint, "run `capturesync auth login`"),
		logging.String(logging.FieldImpact, "uploads paused; attempts are not counted"),
		logging.Alert("auth_required"),
	)
	m.setLastError(err)
	return itemResult{kind: outcomeAuth, attempts: item.Attempts}
}

func (m *Manager) handlePartial(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, message string, err error) itemResult {
	availableAt := m.now().Add(m.partialDelay)
	if storeErr := m.store.DeferPartial(ctx, item.ID, message, availableAt); storeErr != nil {
		logger.Error("failed to defer partial upload", logging.Error(storeErr))
		return m.handleTransient(ctx, logger, item, rec, message, err)
	}
	if rec != nil {
		m.setRecordStatus(ctx, logger, rec, queue.UploadPartial, "")
	}
	logging.WarnWithContext(logger, "upload partially transferred; retrying later", "upload_partial",
		logging.Error(err),
		logging.Duration("retry_in", m.partialDelay),
		logging.String(logging.FieldErrorHint, "the retry re-sends every file"),
		logging.String(logging.FieldImpact, "some artifacts are not uploaded yet"),
	)
	m.setLastError(err)
	return itemResult{kind: outcomePartial, attempts: item.Attempts}
}

func (m *Manager) handleTransient(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, message string, err error) itemResult {
	updated, storeErr := m.store.RecordFailure(ctx, item.ID, message, m.maxRetries)
	if storeErr != nil {
		logger.Error("failed to record upload failure", logging.Error(storeErr))
		m.setLastError(storeErr)
		return itemResult{kind: outcomeRetry, attempts: item.Attempts + 1}
	}
	m.setLastError(err)

	if updated.Status == queue.StatusFailed {
		if rec != nil {
			m.setRecordStatus(ctx, logger, rec, queue.UploadFailed, message)
		}
		logging.ErrorWithContext(logger, "upload failed permanently", "upload_failed",
			logging.Error(err),
			logging.Int("attempts", updated.Attempts),
			logging.String(logging.FieldErrorHint, "fix the cause, then run `capturesync queue retry`"),
			logging.Alert("upload_failed"),
		)
		return itemResult{kind: outcomeFailed, attempts: updated.Attempts}
	}

	if rec != nil {
		m.setRecordStatus(ctx, logger, rec, queue.UploadPending, "")
	}
	logging.WarnWithContext(logger, "upload attempt failed; will retry", "upload_retry",
		logging.Error(err),
		logging.Int("attempts", updated.Attempts),
		logging.Int("max_retries", m.maxRetries),
		logging.String(logging.FieldErrorHint, "transient errors usually clear on their own"),
		logging.String(logging.FieldImpact, "upload delayed"),
	)
	return itemResult{kind: outcomeRetry, attempts: updated.Attempts}
}

// handleInterrupted returns a cancelled item to pending without spending an
// attempt; the next pass restarts it.
func (m *Manager) handleInterrupted(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, err error) itemResult {
	ctx = context.WithoutCancel(ctx)
	if storeErr := m.store.ReleaseForAuth(ctx, item.ID, "interrupted: "+failureMessage(err)); storeErr != nil {
		logger.Error("failed to release interrupted item", logging.Error(storeErr))
	}
	if rec != nil {
		m.setRecordStatus(ctx, logger, rec, queue.UploadPending, "")
	}
	logger.Info("upload interrupted", logging.Error(err))
	return itemResult{kind: outcomeInterrupted, attempts: item.Attempts}
}

func failureMessage(err error) string {
	if err == nil {
		return "upload failed without error detail"
	}
	return strings.TrimSpace(err.Error())
}
