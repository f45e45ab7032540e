// Package gcs implements upload.Remote on a Cloud Storage bucket. Folders are
// zero-byte placeholder objects whose names end in a slash, and a FolderRef is
// the full object prefix.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"capturesync/internal/logging"
	"capturesync/internal/remote"
	"capturesync/internal/upload"
)

const folderContentType = "application/x-directory"

// Client stores record artifacts as objects in a single bucket.
type Client struct {
	gcs    *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

// New opens a client for bucket.
func New(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs: bucket name is empty")
	}
	gcs, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, remote.Classify("open storage client", bucket, err)
	}
	return &Client{
		gcs:    gcs,
		bucket: gcs.Bucket(bucket),
		name:   bucket,
		logger: logging.NewComponentLogger(logger, "gcs"),
	}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.gcs.Close()
}

func (c *Client) FindFolder(ctx context.Context, name string, parent upload.FolderRef) (upload.FolderRef, bool, error) {
	object := FolderObject(parent, name)
	_, err := c.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, remote.Classify("find folder", object, err)
	}
	return upload.FolderRef(object), true, nil
}

// CreateFolder writes the placeholder object only when it does not exist yet,
// so two processes racing on the same folder converge on one object.
func (c *Client) CreateFolder(ctx context.Context, name string, parent upload.FolderRef) (upload.FolderRef, error) {
	object := FolderObject(parent, name)
	w := c.bucket.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = folderContentType
	if err := w.Close(); err != nil && !isPreconditionFailed(err) {
		return "", remote.Classify("create folder", object, err)
	}
	return upload.FolderRef(object), nil
}

func (c *Client) FindFiles(ctx context.Context, name string, parent upload.FolderRef) ([]upload.RemoteFile, error) {
	object := FileObject(parent, name)
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: object, Delimiter: "/"})
	var out []upload.RemoteFile
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, remote.Classify("find files", object, err)
		}
		if attrs.Name == object {
			out = append(out, upload.RemoteFile{ID: attrs.Name, Name: name})
		}
	}
	return out, nil
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	err := c.bucket.Object(id).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return remote.Classify("delete file", id, err)
}

func (c *Client) CreateFile(ctx context.Context, name string, parent upload.FolderRef, mediaType string, body io.Reader) (string, error) {
	object := FileObject(parent, name)
	// Close commits whatever was written; a failed copy must cancel instead
	// so no truncated object lands under the final name.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := c.bucket.Object(object).NewWriter(writeCtx)
	w.ContentType = mediaType
	written, err := io.Copy(w, body)
	if err != nil {
		cancel()
		return "", remote.Classify("create file", object, fmt.Errorf("write after %d bytes: %w", written, err))
	}
	if err := w.Close(); err != nil {
		return "", remote.Classify("create file", object, err)
	}
	c.logger.Debug("object written",
		logging.String("bucket", c.name),
		logging.String("object", object),
		logging.Int64("size_bytes", written),
	)
	return object, nil
}

// FolderObject returns the placeholder object name for folder name under parent.
func FolderObject(parent upload.FolderRef, name string) string {
	return FileObject(parent, name) + "/"
}

// FileObject returns the object name for file name under parent.
func FileObject(parent upload.FolderRef, name string) string {
	name = strings.ReplaceAll(strings.Trim(name, "/"), "/", "-")
	prefix := string(parent)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
