package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrNotLoggedIn is returned when no saved token exists.
var ErrNotLoggedIn = errors.New("gdrive: not logged in")

// receiverTimeout bounds header reads and the final shutdown of the
// loopback server.
const receiverTimeout = 5 * time.Second

// OAuthConfig reads an installed-app client secret downloaded from the
// Google Cloud console and scopes it to full Drive access.
func OAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("gdrive: reading client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("gdrive: parsing client secret %s: %w", clientSecretPath, err)
	}

	return cfg, nil
}

// Login runs the authorization code flow with PKCE against a loopback
// redirect, saves the token at tokenPath and returns a persisting token
// source. openURL launches the browser; if it fails the URL is printed to
// stderr.
func Login(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (oauth2.TokenSource, error) {
	logger.Info("starting browser auth flow", slog.String("path", tokenPath))

	rcv, err := listenLoopback(ctx, logger)
	if err != nil {
		return nil, err
	}

	defer rcv.close()

	// Copy so the caller's config keeps its redirect URL.
	local := *cfg
	local.RedirectURL = rcv.redirectURL()

	verifier := oauth2.GenerateVerifier()
	authURL := local.AuthCodeURL(rcv.state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL", slog.String("error", openErr.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}

	code, err := rcv.wait(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := local.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("gdrive: token exchange failed: %w", err)
	}

	if err := saveToken(tokenPath, tok); err != nil {
		return nil, err
	}

	logger.Info("login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return newPersistingSource(local.TokenSource(ctx, tok), tok, tokenPath, logger), nil
}

// TokenSource loads the token saved at tokenPath. Refreshed tokens are
// written back to the same file. Returns ErrNotLoggedIn if there is none.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tokenPath string, logger *slog.Logger) (oauth2.TokenSource, error) {
	tok, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	logger.Debug("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())),
	)

	return newPersistingSource(cfg.TokenSource(ctx, tok), tok, tokenPath, logger), nil
}

// Logout removes the saved token. A missing file is not an error.
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove", slog.String("path", tokenPath))
		return nil
	}

	if err != nil {
		return fmt.Errorf("gdrive: removing token: %w", err)
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

// persistingSource saves the token whenever the wrapped source refreshes it.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func newPersistingSource(src oauth2.TokenSource, initial *oauth2.Token, path string, logger *slog.Logger) *persistingSource {
	return &persistingSource{src: src, path: path, logger: logger, last: initial.AccessToken}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		p.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("gdrive: obtaining token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}

	p.last = tok.AccessToken

	if err := saveToken(p.path, tok); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)

		return tok, nil
	}

	p.logger.Info("persisted refreshed token",
		slog.String("path", p.path),
		slog.Time("new_expiry", tok.Expiry),
	)

	return tok, nil
}

// loopbackReceiver is the redirect target of the installed-app flow: an
// HTTP server on 127.0.0.1 that accepts exactly one callback carrying the
// expected state.
type loopbackReceiver struct {
	state  string
	port   int
	srv    *http.Server
	result chan authResult
	logger *slog.Logger
}

type authResult struct {
	code string
	err  error
}

func newReceiver(state string, logger *slog.Logger) *loopbackReceiver {
	return &loopbackReceiver{
		state:  state,
		result: make(chan authResult, 1),
		logger: logger,
	}
}

func listenLoopback(ctx context.Context, logger *slog.Logger) (*loopbackReceiver, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("gdrive: binding loopback listener: %w", err)
	}

	rcv := newReceiver(uuid.NewString(), logger)
	rcv.port = ln.Addr().(*net.TCPAddr).Port
	rcv.srv = &http.Server{Handler: rcv, ReadHeaderTimeout: receiverTimeout}

	go func() {
		if err := rcv.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rcv.deliver(authResult{err: fmt.Errorf("gdrive: loopback server: %w", err)})
		}
	}()

	logger.Debug("loopback receiver listening", slog.Int("port", rcv.port))

	return rcv, nil
}

func (r *loopbackReceiver) redirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", r.port)
}

// deliver keeps only the first result; later callbacks are dropped.
func (r *loopbackReceiver) deliver(res authResult) {
	select {
	case r.result <- res:
	default:
	}
}

func (r *loopbackReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	var res authResult

	switch {
	case q.Get("state") != r.state:
		res.err = errors.New("gdrive: OAuth2 state mismatch")
	case q.Get("error") != "":
		res.err = fmt.Errorf("gdrive: authorization failed: %s", q.Get("error"))
	case q.Get("code") == "":
		res.err = errors.New("gdrive: callback missing authorization code")
	default:
		res.code = q.Get("code")
	}

	if res.err != nil {
		http.Error(w, res.err.Error(), http.StatusBadRequest)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "gdrive-go is authorized. You can close this tab.")
	}

	r.deliver(res)
}

func (r *loopbackReceiver) wait(ctx context.Context) (string, error) {
	select {
	case res := <-r.result:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("gdrive: browser auth canceled: %w", ctx.Err())
	}
}

func (r *loopbackReceiver) close() {
	ctx, cancel := context.WithTimeout(context.Background(), receiverTimeout)
	defer cancel()

	if err := r.srv.Shutdown(ctx); err != nil {
		r.logger.Warn("loopback receiver shutdown", slog.String("error", err.Error()))
	}
}
