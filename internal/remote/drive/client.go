package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"capturesync/internal/logging"
	"capturesync/internal/remote"
	"capturesync/internal/upload"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	rootAlias      = "root"
	listPageSize   = 100
)

// Client talks to Drive on behalf of the authenticated user.
type Client struct {
	svc    *drivev3.Service
	logger *slog.Logger
}

// New builds a client from an authorized HTTP client.
func New(ctx context.Context, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("drive: http client is nil")
	}
	return NewWithOptions(ctx, logger, option.WithHTTPClient(httpClient))
}

// NewWithOptions builds a client from raw API options.
func NewWithOptions(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Client{svc: svc, logger: logging.NewComponentLogger(logger, "drive")}, nil
}

func (c *Client) FindFolder(ctx context.Context, name string, parent upload.FolderRef) (upload.FolderRef, bool, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		EscapeQuery(name), EscapeQuery(parentID(parent)), folderMimeType)
	files, err := c.list(ctx, query)
	if err != nil {
		return "", false, remote.Classify("find folder", name, err)
	}
	if len(files) == 0 {
		return "", false, nil
	}
	if len(files) > 1 {
		logging.WarnWithContext(c.logger, "duplicate remote folders", "duplicate_folder",
			logging.String("folder", name),
			logging.Int("count", len(files)),
			logging.String(logging.FieldErrorHint, "merge or remove the extra folders in Drive"),
			logging.String(logging.FieldImpact, "uploads go to the oldest match"),
		)
	}
	return upload.FolderRef(files[0].Id), true, nil
}

func (c *Client) CreateFolder(ctx context.Context, name string, parent upload.FolderRef) (upload.FolderRef, error) {
	meta := &drivev3.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID(parent)},
	}
	created, err := c.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", remote.Classify("create folder", name, err)
	}
	return upload.FolderRef(created.Id), nil
}

func (c *Client) FindFiles(ctx context.Context, name string, parent upload.FolderRef) ([]upload.RemoteFile, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType != '%s' and trashed = false",
		EscapeQuery(name), EscapeQuery(parentID(parent)), folderMimeType)
	files, err := c.list(ctx, query)
	if err != nil {
		return nil, remote.Classify("find files", name, err)
	}
	out := make([]upload.RemoteFile, 0, len(files))
	for _, f := range files {
		out = append(out, upload.RemoteFile{ID: f.Id, Name: f.Name})
	}
	return out, nil
}

// DeleteFile removes a file permanently. A file that is already gone counts
// as deleted.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	err := c.svc.Files.Delete(id).Context(ctx).Do()
	if err == nil || remote.IsNotFound(err) {
		return nil
	}
	return remote.Classify("delete file", id, err)
}

func (c *Client) CreateFile(ctx context.Context, name string, parent upload.FolderRef, mediaType string, body io.Reader) (string, error) {
	meta := &drivev3.File{
		Name:     name,
		MimeType: mediaType,
		Parents:  []string{parentID(parent)},
	}
	created, err := c.svc.Files.Create(meta).
		Media(body, googleapi.ContentType(mediaType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", remote.Classify("create file", name, err)
	}
	return created.Id, nil
}

// About returns the account email, used to confirm credentials work.
func (c *Client) About(ctx context.Context) (string, error) {
	about, err := c.svc.About.Get().Fields("user(emailAddress)").Context(ctx).Do()
	if err != nil {
		return "", remote.Classify("about", "", err)
	}
	if about.User == nil {
		return "", nil
	}
	return about.User.EmailAddress, nil
}

func (c *Client) list(ctx context.Context, query string) ([]*drivev3.File, error) {
	var (
		out   []*drivev3.File
		token string
	)
	for {
		call := c.svc.Files.List().
			Q(query).
			Spaces("drive").
			OrderBy("createdTime").
			PageSize(listPageSize).
			Fields("nextPageToken, files(id, name)").
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Files...)
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func parentID(parent upload.FolderRef) string {
	if parent == "" {
		return rootAlias
	}
	return string(parent)
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// EscapeQuery quotes a value for use inside a single-quoted Drive query literal.
func EscapeQuery(value string) string {
	return queryEscaper.Replace(value)
}
