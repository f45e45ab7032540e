package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/queue"
	"capturesync/internal/services"
	"capturesync/internal/upload"
)

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeNoContent
	outcomeRetry
	outcomePartial
	outcomeFailed
	outcomeAuth
	outcomeInterrupted
)

type itemResult struct {
	kind     outcome
	attempts int
}

// processItem runs validate, provision, transfer, and finalize for a claimed
// item. Every exit leaves the item out of processing.
func (m *Manager) processItem(ctx context.Context, sess *session, item *queue.Item) itemResult {
	ctx = itemContext(ctx, item)
	logger := logging.WithContext(ctx, m.logger)
	started := time.Now()

	rec, err := m.store.GetRecord(ctx, item.RecordID)
	if err != nil {
		return m.handleFailure(ctx, logger, item, nil, err)
	}
	if rec == nil {
		logging.WarnWithContext(logger, "queue item has no record; closing it", "orphan_item",
			logging.String(logging.FieldImpact, "nothing to upload"),
		)
		if err := m.store.MarkCompleted(ctx, item.ID); err != nil {
			logger.Error("failed to close orphan item", logging.Error(err))
		}
		return itemResult{kind: outcomeNoContent}
	}

	m.setRecordStatus(ctx, logger, rec, queue.UploadUploading, "")
	logger.Info("upload started",
		logging.String(logging.FieldEventType, "upload_start"),
		logging.String("title", rec.Title),
		logging.Int("attempts", item.Attempts),
	)

	report, err := m.validate(services.WithStage(ctx, "validate"), rec)
	if err != nil {
		return m.handleFailure(ctx, logger, item, rec, err)
	}
	for _, issue := range report.Issues {
		logger.Info("content discovery note", logging.String("issue", issue))
	}
	if !report.HasContent() {
		return m.finishNoContent(ctx, logger, item, rec)
	}

	if err := sess.ensure(services.WithStage(ctx, "connect"), m); err != nil {
		return m.handleFailure(ctx, logger, item, rec, err)
	}

	folder, err := sess.prov.EnsurePath(services.WithStage(ctx, "provision"), m.cfg.Remote.RootFolder, rec.DateBucket, recordKey(rec))
	if err != nil {
		return m.handleFailure(ctx, logger, item, rec, err)
	}

	files := report.Files()
	succeeded, transferErr := m.transfer(services.WithStage(ctx, "transfer"), logger, sess, folder, files)
	switch {
	case transferErr != nil && ctx.Err() != nil:
		// Only the pass's own cancellation is an interruption; a remote
		// request timeout also matches DeadlineExceeded and must spend an
		// attempt.
		return m.handleInterrupted(ctx, logger, item, rec, transferErr)
	case services.ClassifyFailure(transferErr) == services.FailureAuthExpired:
		return m.handleFailure(ctx, logger, item, rec, transferErr)
	case succeeded == len(files):
		return m.finishCompleted(ctx, logger, item, rec, folder, report, time.Since(started))
	case succeeded > 0:
		return m.handleFailure(ctx, logger, item, rec, services.Partial(succeeded, len(files), transferErr))
	default:
		return m.handleFailure(ctx, logger, item, rec, transferErr)
	}
}

func (m *Manager) validate(ctx context.Context, rec *queue.Record) (content.Report, error) {
	recordings, err := m.store.RecordingsFor(ctx, rec.ID)
	if err != nil {
		return content.Report{}, services.Transient("load recordings", fmt.Sprintf("record %d", rec.ID), err)
	}
	return m.validator.Validate(ctx, rec, recordings)
}

// transfer syncs every file in order and reports how many landed. It stops
// early only for cancellation or expired credentials; other per-file failures
// are remembered and the remaining files are still attempted.
func (m *Manager) transfer(ctx context.Context, logger *slog.Logger, sess *session, folder upload.FolderRef, files []content.Candidate) (int, error) {
	var (
		succeeded int
		lastErr   error
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return succeeded, err
		}
		if _, err := sess.sync.SyncFile(ctx, file, folder); err != nil {
			if ctx.Err() != nil || services.ClassifyFailure(err) == services.FailureAuthExpired {
				return succeeded, err
			}
			logging.WarnWithContext(logger, "file transfer failed", "file_transfer_failed",
				logging.String("file", file.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the item is retried with the remaining budget"),
				logging.String(logging.FieldImpact, "record upload incomplete"),
			)
			lastErr = err
			continue
		}
		succeeded++
	}
	return succeeded, lastErr
}

func (m *Manager) finishCompleted(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record, folder upload.FolderRef, report content.Report, elapsed time.Duration) itemResult {
	if err := m.store.SetUploadStatus(ctx, rec.ID, queue.UploadCompleted, string(folder)); err != nil {
		return m.handleFailure(ctx, logger, item, rec, services.Transient("finalize", fmt.Sprintf("record %d", rec.ID), err))
	}
	if err := m.store.MarkCompleted(ctx, item.ID); err != nil {
		logger.Error("failed to mark item completed", logging.Error(err))
	}
	m.emit(rec, queue.UploadCompleted, "")
	logger.Info("upload completed",
		logging.String(logging.FieldEventType, "upload_complete"),
		logging.String("folder_id", string(folder)),
		logging.Int("notes", len(report.Notes)),
		logging.Int("recordings", len(report.Recordings)),
		logging.Int64("bytes", report.TotalBytes()),
		logging.Duration("elapsed", elapsed),
	)
	return itemResult{kind: outcomeCompleted}
}

func (m *Manager) finishNoContent(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *queue.Record) itemResult {
	m.setRecordStatus(ctx, logger, rec, queue.UploadNoContent, "")
	if err := m.store.MarkCompleted(ctx, item.ID); err != nil {
		logger.Error("failed to mark item completed", logging.Error(err))
	}
	logger.Info("record has nothing to upload",
		logging.String(logging.FieldEventType, "upload_no_content"),
	)
	return itemResult{kind: outcomeNoContent}
}

// recordKey names the record's remote folder.
func recordKey(rec *queue.Record) string {
	if slug := strings.TrimSpace(rec.Slug()); slug != "" {
		return slug
	}
	return fmt.Sprintf("record-%d", rec.ID)
}
