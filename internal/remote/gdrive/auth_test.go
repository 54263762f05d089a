package gdrive

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testTokenJSON = `{
	"access_token": "test-access-token",
	"refresh_token": "test-refresh-token",
	"token_type": "Bearer",
	"expires_in": 3600
}`

const testClientSecret = `{
	"installed": {
		"client_id": "client-123.apps.googleusercontent.com",
		"client_secret": "shh",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["http://localhost"]
	}
}`

// newMockAuthServer serves an authorize endpoint that redirects straight
// back to the callback, and a token endpoint driven by tokenHandler.
func newMockAuthServer(t *testing.T, tokenHandler http.HandlerFunc) *oauth2.Config {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", func(w http.ResponseWriter, r *http.Request) {
		redirectURI := r.URL.Query().Get("redirect_uri")
		state := r.URL.Query().Get("state")
		http.Redirect(w, r, redirectURI+"?code=test-auth-code&state="+url.QueryEscape(state), http.StatusFound)
	})

	if tokenHandler == nil {
		tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testTokenJSON))
		}
	}

	mux.HandleFunc("POST /token", tokenHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &oauth2.Config{
		ClientID: "client-123",
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
		Scopes:   []string{"scope"},
	}
}

// simulateBrowser fetches the auth URL and follows the redirect to the
// loopback callback server by hand.
func simulateBrowser(t *testing.T) func(string) error {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return func(authURL string) error {
		resp, err := client.Get(authURL) //nolint:noctx // test helper
		if err != nil {
			return err
		}
		resp.Body.Close()

		location := resp.Header.Get("Location")
		if location == "" {
			return errors.New("authorize endpoint did not redirect")
		}

		callback, err := http.Get(location) //nolint:noctx // test helper
		if err != nil {
			return err
		}
		callback.Body.Close()

		return nil
	}
}

func TestOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientSecret), 0o600))

	cfg, err := OAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "client-123.apps.googleusercontent.com", cfg.ClientID)
	assert.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/drive")

	_, err = OAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	cfg := newMockAuthServer(t, nil)
	tokenPath := filepath.Join(t.TempDir(), "tokens", "drive.json")

	ts, err := Login(t.Context(), cfg, tokenPath, simulateBrowser(t), discardLogger())
	require.NoError(t, err)

	saved, err := loadToken(tokenPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "test-access-token", saved.AccessToken)
	assert.Equal(t, "test-refresh-token", saved.RefreshToken)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok.AccessToken)

	assert.Empty(t, cfg.RedirectURL, "caller config is not mutated")
}

func TestLogin_StateMismatch(t *testing.T) {
	cfg := newMockAuthServer(t, nil)

	tamper := func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}

		q := u.Query()
		q.Set("state", "forged")
		u.RawQuery = q.Encode()

		return simulateBrowser(t)(u.String())
	}

	_, err := Login(t.Context(), cfg, filepath.Join(t.TempDir(), "t.json"), tamper, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestLogin_ExchangeError(t *testing.T) {
	cfg := newMockAuthServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	tokenPath := filepath.Join(t.TempDir(), "t.json")

	_, err := Login(t.Context(), cfg, tokenPath, simulateBrowser(t), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")
	assert.NoFileExists(t, tokenPath)
}

func TestLogin_ContextCancel(t *testing.T) {
	cfg := newMockAuthServer(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	openURL := func(string) error {
		cancel()
		return nil
	}

	_, err := Login(ctx, cfg, filepath.Join(t.TempDir(), "t.json"), openURL, discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenSource_NotLoggedIn(t *testing.T) {
	_, err := TokenSource(t.Context(), &oauth2.Config{}, filepath.Join(t.TempDir(), "none.json"), discardLogger())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenSource_ValidToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, saveToken(tokenPath, &oauth2.Token{
		AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour),
	}))

	ts, err := TokenSource(t.Context(), &oauth2.Config{}, tokenPath, discardLogger())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
}

type sequenceSource struct {
	tokens []*oauth2.Token
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	if s.i >= len(s.tokens) {
		return nil, errors.New("exhausted")
	}

	tok := s.tokens[s.i]
	s.i++

	return tok, nil
}

func TestPersistingSource_SavesOnRefresh(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "t.json")
	initial := &oauth2.Token{AccessToken: "a1"}
	src := &sequenceSource{tokens: []*oauth2.Token{
		initial,
		{AccessToken: "a2", RefreshToken: "r"},
	}}

	p := newPersistingSource(src, initial, tokenPath, discardLogger())

	_, err := p.Token()
	require.NoError(t, err)
	assert.NoFileExists(t, tokenPath, "unchanged token is not rewritten")

	_, err = p.Token()
	require.NoError(t, err)

	saved, err := loadToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "a2", saved.AccessToken)

	_, err = p.Token()
	assert.Error(t, err)
}

func TestSaveToken_PermissionsAndRoundTrip(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "nested", "t.json")
	require.NoError(t, saveToken(tokenPath, &oauth2.Token{AccessToken: "x", RefreshToken: "y"}))

	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := loadToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "y", tok.RefreshToken)

	entries, err := os.ReadDir(filepath.Dir(tokenPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadToken_Errors(t *testing.T) {
	dir := t.TempDir()

	tok, err := loadToken(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, tok)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = loadToken(bad)
	assert.Error(t, err)

	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte(`{"access_token":"x"}`), 0o600))
	_, err = loadToken(bare)
	assert.ErrorContains(t, err, "re-login required")
}

func TestLogout(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, saveToken(tokenPath, &oauth2.Token{AccessToken: "x"}))

	require.NoError(t, Logout(tokenPath, discardLogger()))
	assert.NoFileExists(t, tokenPath)

	require.NoError(t, Logout(tokenPath, discardLogger()), "already logged out")
}

func TestLoopbackReceiver_Callbacks(t *testing.T) {
	tests := []struct {
		query   string
		code    string
		errPart string
	}{
		{"state=s&code=abc", "abc", ""},
		{"state=other&code=abc", "", "state mismatch"},
		{"state=s&error=access_denied", "", "access_denied"},
		{"state=s", "", "missing authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rcv := newReceiver("s", discardLogger())
			rec := httptest.NewRecorder()

			rcv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))

			code, err := rcv.wait(t.Context())
			if tt.errPart != "" {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.ErrorContains(t, err, tt.errPart)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestLoopbackReceiver_KeepsFirstResult(t *testing.T) {
	rcv := newReceiver("s", discardLogger())

	rcv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?state=s&code=first", nil))
	rcv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?state=s&code=second", nil))

	code, err := rcv.wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "first", code)
}
