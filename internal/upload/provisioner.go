package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"capturesync/internal/logging"
	"capturesync/internal/services"
)

// Provisioner ensures remote folders exist.
type Provisioner struct {
	remote Remote
	logger *slog.Logger
	flight singleflight.Group
}

// NewProvisioner binds a provisioner to remote.
func NewProvisioner(remote Remote, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		remote: remote,
		logger: logging.NewComponentLogger(logger, "provisioner"),
	}
}

// EnsureFolder returns the folder named name under parent, creating it when
// the remote has none. Sequential calls are idempotent; concurrent calls for
// the same name and parent share one lookup.
func (p *Provisioner) EnsureFolder(ctx context.Context, name string, parent FolderRef) (FolderRef, error) {
	if p == nil || p.remote == nil {
		return "", errors.New("provisioner: remote unavailable")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "provisioner", "ensure folder", "folder name is empty", nil)
	}

	key := fmt.Sprintf("folder:%s:%s", parent, name)
	value, err, shared := p.flight.Do(key, func() (any, error) {
		return p.findOrCreate(ctx, name, parent)
	})
	if err != nil {
		return "", err
	}
	if shared {
		p.logger.Debug("folder lookup shared", logging.String("folder", name))
	}
	return value.(FolderRef), nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, name string, parent FolderRef) (FolderRef, error) {
	ref, found, err := p.remote.FindFolder(ctx, name, parent)
	if err != nil {
		return "", classify(err, "find folder", name)
	}
	if found {
		return ref, nil
	}
	ref, err = p.remote.CreateFolder(ctx, name, parent)
	if err != nil {
		return "", classify(err, "create folder", name)
	}
	p.logger.Info(
		"remote folder created",
		logging.String("folder", name),
		logging.String("parent", string(parent)),
		logging.String("folder_id", string(ref)),
		logging.String(logging.FieldEventType, "folder_created"),
	)
	return ref, nil
}

// EnsurePath provisions root, then date under it, then key under the date.
func (p *Provisioner) EnsurePath(ctx context.Context, root, date, key string) (FolderRef, error) {
	ref := FolderRef("")
	for _, name := range []string{root, date, key} {
		next, err := p.EnsureFolder(ctx, name, ref)
		if err != nil {
			return "", err
		}
		ref = next
	}
	return ref, nil
}

// classify tags err as transient unless the remote already classified it.
func classify(err error, operation, target string) error {
	var upErr *services.UploadError
	if errors.As(err, &upErr) {
		return err
	}
	if errors.Is(err, services.ErrAuthExpired) {
		return services.AuthExpired(operation, err)
	}
	return services.Transient(operation, target, err)
}
