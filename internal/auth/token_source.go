package auth

import (
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"capturesync/internal/logging"
)

// persistingSource saves every token the wrapped source rotates to.
type persistingSource struct {
	base   oauth2.TokenSource
	store  TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func newPersistingSource(base oauth2.TokenSource, store TokenStore, initial *oauth2.Token, logger *slog.Logger) *persistingSource {
	src := &persistingSource{base: base, store: store, logger: logger}
	if initial != nil {
		src.last = initial.AccessToken
	}
	return src
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken
	if err := s.store.Save(tok); err != nil {
		logging.WarnWithContext(s.logger, "refreshed token not saved", "token_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the token file"),
			logging.String(logging.FieldImpact, "the next run refreshes the token again"),
		)
		return tok, nil
	}
	s.logger.Debug("token refreshed", logging.String("expiry", tok.Expiry.UTC().Format("2006-01-02T15:04:05Z")))
	return tok, nil
}
