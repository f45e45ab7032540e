package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"capturesync/internal/auth"
	"capturesync/internal/services"
	"capturesync/internal/testsupport"
)

func tokenServer(t *testing.T, handler http.HandlerFunc) *oauth2.Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"scope"},
	}
}

func writeToken(w http.ResponseWriter, access string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"` + access + `","token_type":"Bearer","refresh_token":"refresh-2","expires_in":3600}`))
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := auth.NewFileTokenStore(path)

	tok, err := store.Load()
	if err != nil || tok != nil {
		t.Fatalf("expected nil token for missing file, got %v, %v", tok, err)
	}

	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour).UTC()}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" || !got.Expiry.Equal(want.Expiry) {
		t.Fatalf("unexpected token %+v", got)
	}
}

func TestConnectWithoutCredentialsIsAuthFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	connector := auth.NewConnector(cfg, nil)

	_, err := connector.Connect(context.Background())
	if !errors.Is(err, services.ErrAuthExpired) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if !errors.Is(err, auth.ErrNoCredentials) {
		t.Fatalf("expected missing credentials cause, got %v", err)
	}
}

func TestConnectWithoutTokenIsAuthFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	oauthCfg := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected token request")
	})
	connector := auth.NewConnector(cfg, nil, auth.WithOAuthConfig(oauthCfg))

	_, err := connector.Connect(context.Background())
	if kind := services.ClassifyFailure(err); kind != services.FailureAuthExpired {
		t.Fatalf("expected auth failure, got %s (%v)", kind, err)
	}
	if !errors.Is(err, auth.ErrNotLinked) {
		t.Fatalf("expected not linked cause, got %v", err)
	}
}

func TestConnectRevokedGrantIsAuthFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	oauthCfg := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})
	store := auth.NewFileTokenStore(cfg.Remote.TokenFile)
	if err := store.Save(&oauth2.Token{AccessToken: "old", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	connector := auth.NewConnector(cfg, nil, auth.WithOAuthConfig(oauthCfg))
	_, err := connector.Connect(context.Background())
	if kind := services.ClassifyFailure(err); kind != services.FailureAuthExpired {
		t.Fatalf("expected auth failure, got %s (%v)", kind, err)
	}
}

func TestConnectRefreshesAndPersistsToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	oauthCfg := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeToken(w, "fresh")
	})
	store := auth.NewFileTokenStore(cfg.Remote.TokenFile)
	if err := store.Save(&oauth2.Token{AccessToken: "old", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	connector := auth.NewConnector(cfg, nil, auth.WithOAuthConfig(oauthCfg))
	remote, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if remote == nil {
		t.Fatal("expected remote")
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.AccessToken != "fresh" || saved.RefreshToken != "refresh-2" {
		t.Fatalf("refreshed token not persisted: %+v", saved)
	}
}

func TestLoginStoresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	verifiers := make(chan string, 1)
	oauthCfg := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("code") != "code-123" {
			t.Errorf("unexpected code %q", r.Form.Get("code"))
		}
		verifiers <- r.Form.Get("code_verifier")
		writeToken(w, "linked")
	})
	connector := auth.NewConnector(cfg, nil, auth.WithOAuthConfig(oauthCfg))

	open := func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		query := parsed.Query()
		if query.Get("access_type") != "offline" || query.Get("code_challenge") == "" {
			t.Errorf("consent url missing offline access or PKCE: %s", authURL)
		}
		callback := query.Get("redirect_uri") + "?code=code-123&state=" + url.QueryEscape(query.Get("state"))
		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				t.Errorf("callback: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}

	tok, err := connector.Login(context.Background(), auth.LoginOptions{Open: open, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != "linked" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if verifier := <-verifiers; verifier == "" {
		t.Fatal("expected PKCE verifier in code exchange")
	}
	status := connector.Inspect()
	if !status.Linked || !status.HasRefresh || !status.CredentialsOK {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLoginRejectsStateMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	oauthCfg := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("token endpoint must not be called")
	})
	connector := auth.NewConnector(cfg, nil, auth.WithOAuthConfig(oauthCfg))

	codes := make(chan int, 1)
	open := func(authURL string) error {
		parsed, _ := url.Parse(authURL)
		callback := parsed.Query().Get("redirect_uri") + "?code=x&state=forged"
		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
		return nil
	}

	_, err := connector.Login(context.Background(), auth.LoginOptions{Open: open, Timeout: 500 * time.Millisecond})
	if err == nil {
		t.Fatal("expected login to time out after a forged callback")
	}
	if code := <-codes; code != http.StatusBadRequest {
		t.Fatalf("expected 400 for forged state, got %d", code)
	}
}
