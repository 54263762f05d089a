// Package gdrive implements remote.Store on the Google Drive v3 API.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tonimelisma/gdrive-go/internal/remote"
)

// Retry and backoff constants.
const (
	defaultMaxRetries = 5
	baseBackoff       = 1 * time.Second
	maxBackoff        = 60 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
	defaultUserAgent  = "gdrive-go/0.1"
)

// sniffLen is how much content is read to detect a MIME type.
const sniffLen = 3072

const (
	objectFields = "id,name,mimeType,size,md5Checksum,parents,description,appProperties,modifiedTime"
	searchFields = "nextPageToken,files(" + objectFields + ")"
	idFields     = "nextPageToken,files(id)"
)

// App property keys carried on uploaded files.
const (
	PropExtension = "extension"
	PropVersion   = "version"
)

// Config tunes a Client.
type Config struct {
	// Endpoint overrides the API base URL. Empty uses the public endpoint.
	Endpoint       string
	UserAgent      string
	RequestTimeout time.Duration // per search request; 0 disables
	MaxRetries     int           // 0 uses the default
}

// Client talks to Google Drive. It is safe for concurrent use.
type Client struct {
	svc        *drive.Service
	logger     *slog.Logger
	timeout    time.Duration
	maxRetries int

	// sleepFunc waits between retries. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New builds a Client. httpClient must already carry authorization, for
// example one from oauth2.NewClient.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating drive service: %w", err)
	}

	// A caller-supplied HTTP client bypasses option.WithUserAgent.
	svc.UserAgent = ua

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Client{
		svc:        svc,
		logger:     logger,
		timeout:    cfg.RequestTimeout,
		maxRetries: retries,
		sleepFunc:  timeSleep,
	}, nil
}

// Search returns one page of files matching q.
func (c *Client) Search(ctx context.Context, q remote.Query, pageToken string) (remote.Page, error) {
	fields := searchFields
	if q.IDsOnly {
		fields = idFields
	}

	var list *drive.FileList

	err := c.retry(ctx, "search", true, func(ctx context.Context) error {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		call := c.svc.Files.List().
			Q(q.String()).
			Spaces("drive").
			Fields(googleapi.Field(fields)).
			Context(ctx)

		if q.PageSize > 0 {
			call = call.PageSize(int64(q.PageSize))
		}

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var err error
		list, err = call.Do()

		return err
	})
	if err != nil {
		return remote.Page{}, err
	}

	page := remote.Page{
		Objects:       make([]remote.Object, 0, len(list.Files)),
		NextPageToken: list.NextPageToken,
	}

	for _, f := range list.Files {
		page.Objects = append(page.Objects, toObject(f))
	}

	c.logger.Debug("search page",
		slog.String("query", q.String()),
		slog.Int("results", len(page.Objects)),
		slog.Bool("more", page.NextPageToken != ""),
	)

	return page, nil
}

// CreateObject creates a file or folder and returns its ID. When meta has
// no MIME type the content is sniffed. Creation is retried only when
// content is nil or can be rewound.
func (c *Client) CreateObject(ctx context.Context, meta remote.Metadata, content io.Reader) (string, error) {
	f := &drive.File{
		Name:        meta.Name,
		Parents:     meta.Parents,
		MimeType:    meta.MimeType,
		Description: meta.Description,
	}

	props := make(map[string]string, 2) //nolint:mnd // extension and version
	if meta.Extension != "" {
		props[PropExtension] = meta.Extension
	}

	if meta.Version != "" {
		props[PropVersion] = meta.Version
	}

	if len(props) > 0 {
		f.AppProperties = props
	}

	body, rewind, err := prepareBody(content, f)
	if err != nil {
		return "", fmt.Errorf("gdrive: reading content of %s: %w", meta.Name, err)
	}

	var created *drive.File

	err = c.retry(ctx, "create", body == nil || rewind != nil, func(ctx context.Context) error {
		call := c.svc.Files.Create(f).Fields("id").Context(ctx)

		if body != nil {
			if rewind != nil {
				if err := rewind(); err != nil {
					return err
				}
			}

			call = call.Media(body, googleapi.ContentType(f.MimeType))
		}

		var err error
		created, err = call.Do()

		return err
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("created object",
		slog.String("name", meta.Name),
		slog.String("id", created.Id),
		slog.String("mime_type", f.MimeType),
	)

	return created.Id, nil
}

// prepareBody fills f.MimeType from the content when it is unset. The
// returned rewind is non-nil when body can be replayed for a retry.
func prepareBody(content io.Reader, f *drive.File) (io.Reader, func() error, error) {
	if content == nil {
		return nil, nil, nil
	}

	seeker, seekable := content.(io.Seeker)

	var rewind func() error
	if seekable {
		rewind = func() error {
			_, err := seeker.Seek(0, io.SeekStart)
			return err
		}
	}

	if f.MimeType != "" {
		return content, rewind, nil
	}

	head := make([]byte, sniffLen)

	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, err
	}

	head = head[:n]
	f.MimeType = mimetype.Detect(head).String()

	if seekable {
		return content, rewind, nil
	}

	return io.MultiReader(bytes.NewReader(head), content), nil, nil
}

// GetContent streams the bytes of file id.
func (c *Client) GetContent(ctx context.Context, id string) (io.ReadCloser, error) {
	var resp *http.Response

	err := c.retry(ctx, "get", true, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Files.Get(id).Context(ctx).Download()

		return err
	})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

func toObject(f *drive.File) remote.Object {
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	return remote.Object{
		ID:          f.Id,
		Name:        f.Name,
		IsFolder:    f.MimeType == remote.FolderMimeType,
		MimeType:    f.MimeType,
		Size:        f.Size,
		MD5:         f.Md5Checksum,
		Parents:     f.Parents,
		Description: f.Description,
		Properties:  f.AppProperties,
		ModifiedAt:  modified,
	}
}

// retry runs fn until it succeeds, fails permanently or the retry budget is
// spent. Failures come back as *remote.Error.
func (c *Client) retry(ctx context.Context, op string, canRetry bool, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("gdrive: %s canceled: %w", op, ctx.Err())
		}

		if !canRetry || attempt >= c.maxRetries || !retryable(err) {
			if attempt > 0 {
				c.logger.Error("request failed after retries",
					slog.String("op", op),
					slog.Int("attempts", attempt+1),
					slog.String("error", err.Error()),
				)
			}

			return classify(op, err)
		}

		backoff := c.retryBackoff(err, attempt)
		c.logger.Warn("retrying drive request",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return fmt.Errorf("gdrive: %s canceled: %w", op, sleepErr)
		}
	}
}

// classify converts an API or network error into a *remote.Error.
func classify(op string, err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return &remote.Error{Op: op, Err: err}
	}

	if rateLimited(gErr) {
		return &remote.Error{
			Op:         op,
			StatusCode: gErr.Code,
			Message:    gErr.Message,
			Err:        remote.ErrThrottled,
		}
	}

	return remote.NewStatusError(op, gErr.Code, gErr.Message)
}

// retryable reports whether err is worth another attempt. Network errors
// are; API errors depend on the status and reason.
func retryable(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return true
	}

	return remote.IsRetryable(gErr.Code) || rateLimited(gErr)
}

// rateLimited reports a 403 that Drive uses for quota exhaustion.
func rateLimited(gErr *googleapi.Error) bool {
	if gErr.Code != http.StatusForbidden {
		return false
	}

	for _, item := range gErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}

	return false
}

// retryBackoff honors Retry-After when the server sends one.
func (c *Client) retryBackoff(err error, attempt int) time.Duration {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Header != nil {
		if ra := gErr.Header.Get("Retry-After"); ra != "" {
			if seconds, convErr := strconv.Atoi(ra); convErr == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
