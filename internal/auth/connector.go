package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"capturesync/internal/config"
	"capturesync/internal/logging"
	"capturesync/internal/remote"
	"capturesync/internal/remote/drive"
	"capturesync/internal/remote/gcs"
	"capturesync/internal/services"
	"capturesync/internal/upload"
)

var (
	// ErrNotLinked is returned when no user token has been stored yet.
	ErrNotLinked = errors.New("remote account not linked; run `capturesync auth login`")
	// ErrNoCredentials is returned when the OAuth client secrets file is missing.
	ErrNoCredentials = errors.New("oauth client credentials missing")
)

// Option customises Connector construction.
type Option func(*Connector)

// WithTokenStore injects a custom persistence layer.
func WithTokenStore(store TokenStore) Option {
	return func(c *Connector) {
		c.store = store
	}
}

// WithOAuthConfig bypasses loading client secrets from disk.
func WithOAuthConfig(cfg *oauth2.Config) Option {
	return func(c *Connector) {
		c.oauth = cfg
	}
}

// Connector builds authenticated remotes for the configured backend.
type Connector struct {
	cfg     *config.Config
	store   TokenStore
	oauth   *oauth2.Config
	logger  *slog.Logger
	timeout time.Duration
}

// NewConnector builds a Connector from configuration.
func NewConnector(cfg *config.Config, logger *slog.Logger, opts ...Option) *Connector {
	c := &Connector{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "auth"),
	}
	if cfg != nil {
		c.store = NewFileTokenStore(cfg.Remote.TokenFile)
		if cfg.Remote.RequestTimeout > 0 {
			c.timeout = time.Duration(cfg.Remote.RequestTimeout) * time.Second
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadOAuthConfig reads installed-app client secrets downloaded from the
// Google Cloud console.
func LoadOAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, path)
		}
		return nil, fmt.Errorf("read oauth credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, drivev3.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth credentials: %w", err)
	}
	return cfg, nil
}

func (c *Connector) oauthConfig() (*oauth2.Config, error) {
	if c.oauth != nil {
		return c.oauth, nil
	}
	cfg, err := LoadOAuthConfig(c.cfg.Remote.CredentialsFile)
	if err != nil {
		return nil, err
	}
	c.oauth = cfg
	return cfg, nil
}

// Connect returns a remote ready for uploads. Credential problems are tagged
// as auth failures; network trouble while refreshing stays transient.
func (c *Connector) Connect(ctx context.Context) (upload.Remote, error) {
	if c == nil || c.cfg == nil {
		return nil, errors.New("connector: config is nil")
	}
	switch strings.ToLower(c.cfg.Remote.Backend) {
	case config.BackendGCS:
		return c.connectGCS(ctx)
	default:
		return c.connectDrive(ctx)
	}
}

func (c *Connector) connectDrive(ctx context.Context) (upload.Remote, error) {
	httpClient, err := c.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	client, err := drive.New(ctx, httpClient, c.logger)
	if err != nil {
		return nil, services.Transient("connect", "drive", err)
	}
	return client, nil
}

// HTTPClient returns an HTTP client authorized with the stored user token,
// refreshing it first so a revoked grant is detected before any upload.
func (c *Connector) HTTPClient(ctx context.Context) (*http.Client, error) {
	oauthCfg, err := c.oauthConfig()
	if err != nil {
		return nil, services.AuthExpired("load credentials", err)
	}
	tok, err := c.store.Load()
	if err != nil {
		return nil, services.AuthExpired("load token", err)
	}
	if tok == nil || (tok.RefreshToken == "" && !tok.Valid()) {
		return nil, services.AuthExpired("load token", ErrNotLinked)
	}

	// The drain context ends with the pass; refreshes must outlive it.
	base := oauthCfg.TokenSource(context.WithoutCancel(ctx), tok)
	src := newPersistingSource(base, c.store, tok, c.logger)
	if _, err := src.Token(); err != nil {
		return nil, remote.Classify("refresh token", "", err)
	}

	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), oauth2.ReuseTokenSource(nil, src))
	httpClient.Timeout = c.timeout
	return httpClient, nil
}

func (c *Connector) connectGCS(ctx context.Context) (upload.Remote, error) {
	var opts []option.ClientOption
	if path := strings.TrimSpace(c.cfg.Remote.CredentialsFile); path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, option.WithCredentialsFile(path))
		}
	}
	client, err := gcs.New(ctx, c.cfg.Remote.GCSBucket, c.logger, opts...)
	if err != nil {
		// Client construction does no I/O; it only fails on missing or unusable credentials.
		return nil, services.AuthExpired("connect", err)
	}
	return client, nil
}

// Status summarises the stored credentials.
type Status struct {
	Backend        string    `json:"backend"`
	CredentialsOK  bool      `json:"credentials_ok"`
	Linked         bool      `json:"linked"`
	HasRefresh     bool      `json:"has_refresh_token"`
	Expiry         time.Time `json:"expiry,omitempty"`
	Account        string    `json:"account,omitempty"`
	CredentialsErr string    `json:"credentials_error,omitempty"`
}

// Inspect reports on the stored credentials without contacting the remote.
func (c *Connector) Inspect() Status {
	status := Status{Backend: c.cfg.Remote.Backend}
	if _, err := c.oauthConfig(); err != nil {
		status.CredentialsErr = err.Error()
	} else {
		status.CredentialsOK = true
	}
	if tok, err := c.store.Load(); err == nil && tok != nil {
		status.Linked = tok.AccessToken != "" || tok.RefreshToken != ""
		status.HasRefresh = tok.RefreshToken != ""
		status.Expiry = tok.Expiry
	}
	return status
}

// Verify connects and, for Drive, asks who the token belongs to.
func (c *Connector) Verify(ctx context.Context) (Status, error) {
	status := c.Inspect()
	r, err := c.Connect(ctx)
	if err != nil {
		return status, err
	}
	if closer, ok := r.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if about, ok := r.(interface {
		About(context.Context) (string, error)
	}); ok {
		account, err := about.About(ctx)
		if err != nil {
			return status, err
		}
		status.Account = account
	}
	return status, nil
}
