package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"capturesync/internal/logging"
)

// LoginOptions controls the installed-app login flow.
type LoginOptions struct {
	// Open is handed the consent URL; it typically prints it or launches a browser.
	Open func(authURL string) error
	// ListenAddr is the loopback address for the redirect listener.
	ListenAddr string
	Timeout    time.Duration
}

type callbackResult struct {
	code string
	err  error
}

// Login runs the OAuth installed-app flow with a loopback redirect and PKCE,
// then stores the resulting token.
func (c *Connector) Login(ctx context.Context, opts LoginOptions) (*oauth2.Token, error) {
	if opts.Open == nil {
		return nil, errors.New("login: no way to present the consent URL")
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	base, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("login: listen for redirect: %w", err)
	}
	cfg := *base
	cfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	if err := opts.Open(authURL); err != nil {
		return nil, fmt.Errorf("login: present consent url: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var result callbackResult
	select {
	case <-waitCtx.Done():
		return nil, fmt.Errorf("login: waiting for consent: %w", waitCtx.Err())
	case result = <-results:
	}
	if result.err != nil {
		return nil, result.err
	}

	tok, err := cfg.Exchange(ctx, result.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("login: exchange code: %w", err)
	}
	if err := c.store.Save(tok); err != nil {
		return nil, err
	}
	c.logger.Info("remote account linked",
		logging.Bool("refresh_token", tok.RefreshToken != ""),
		logging.String(logging.FieldEventType, "auth_linked"),
	)
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var result callbackResult
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case query.Get("error") != "":
			result.err = fmt.Errorf("login: consent denied: %s", query.Get("error"))
			http.Error(w, "authorization was not granted", http.StatusForbidden)
		case query.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			result.code = query.Get("code")
			_, _ = fmt.Fprintln(w, "capturesync is authorized. You can close this tab.")
		}
		select {
		case results <- result:
		default:
		}
	})
}
