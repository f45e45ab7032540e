package upload

import (
	"context"
	"io"
)

// FolderRef is an opaque remote folder identifier. The zero value addresses
// the remote's top level.
type FolderRef string

// RemoteFile identifies a stored file.
type RemoteFile struct {
	ID   string
	Name string
}

// Remote is the storage surface the engine needs. Implementations classify
// their failures into services.UploadError kinds before returning them.
type Remote interface {
	// FindFolder returns the first non-trashed folder named exactly name under parent.
	FindFolder(ctx context.Context, name string, parent FolderRef) (FolderRef, bool, error)
	CreateFolder(ctx context.Context, name string, parent FolderRef) (FolderRef, error)
	// FindFiles lists non-trashed files named exactly name under parent.
	FindFiles(ctx context.Context, name string, parent FolderRef) ([]RemoteFile, error)
	DeleteFile(ctx context.Context, id string) error
	CreateFile(ctx context.Context, name string, parent FolderRef, mediaType string, body io.Reader) (string, error)
}
