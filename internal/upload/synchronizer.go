package upload

import (
	"context"
	"log/slog"

	"capturesync/internal/content"
	"capturesync/internal/logging"
	"capturesync/internal/services"
)

// Synchronizer replaces remote files with local candidates.
type Synchronizer struct {
	remote Remote
	logger *slog.Logger
}

// NewSynchronizer binds a synchronizer to remote.
func NewSynchronizer(remote Remote, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote: remote,
		logger: logging.NewComponentLogger(logger, "synchronizer"),
	}
}

// SyncFile deletes every remote file named candidate.Name under folder and
// uploads the candidate in its place, returning the new remote file id.
func (s *Synchronizer) SyncFile(ctx context.Context, candidate content.Candidate, folder FolderRef) (string, error) {
	if folder == "" {
		return "", services.Wrap(services.ErrValidation, "synchronizer", "sync file", "destination folder is empty", nil)
	}

	existing, err := s.remote.FindFiles(ctx, candidate.Name, folder)
	if err != nil {
		return "", classify(err, "find files", candidate.Name)
	}
	for _, file := range existing {
		if err := s.remote.DeleteFile(ctx, file.ID); err != nil {
			return "", classify(err, "delete file", candidate.Name)
		}
	}
	if len(existing) > 0 {
		s.logger.Debug("replaced remote copies",
			logging.String("file", candidate.Name),
			logging.Int("deleted", len(existing)),
		)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	mediaType := MediaType(candidate)
	body, err := candidate.Open()
	if err != nil {
		return "", services.Transient("open local file", candidate.Name, err)
	}
	defer body.Close()

	id, err := s.remote.CreateFile(ctx, candidate.Name, folder, mediaType, body)
	if err != nil {
		return "", classify(err, "create file", candidate.Name)
	}
	s.logger.Info(
		"file uploaded",
		logging.String("file", candidate.Name),
		logging.String("kind", string(candidate.Kind)),
		logging.String("media_type", mediaType),
		logging.Int64("size_bytes", candidate.Size),
		logging.String("file_id", id),
	)
	return id, nil
}
