package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"
)

// Throttled decorates a Store with a search rate limit and a shared
// content bandwidth limit. Path resolution issues one search per path
// component, so a deep tree can otherwise burst past the server quota.
type Throttled struct {
	store     Store
	searches  *rate.Limiter
	bandwidth *Bandwidth
	logger    *slog.Logger
}

// ThrottleOption configures a Throttled store.
type ThrottleOption func(*Throttled)

// WithSearchRate limits searches to perSecond with the given burst.
// perSecond <= 0 leaves searches unlimited.
func WithSearchRate(perSecond float64, burst int) ThrottleOption {
	return func(t *Throttled) {
		if perSecond <= 0 {
			t.searches = nil
			return
		}

		if burst < 1 {
			burst = 1
		}

		t.searches = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBandwidth shares b across all content transfers.
func WithBandwidth(b *Bandwidth) ThrottleOption {
	return func(t *Throttled) { t.bandwidth = b }
}

// WithThrottleLogger sets the logger.
func WithThrottleLogger(logger *slog.Logger) ThrottleOption {
	return func(t *Throttled) { t.logger = logger }
}

// Throttle wraps store. Without options it only delegates.
func Throttle(store Store, opts ...ThrottleOption) *Throttled {
	t := &Throttled{store: store, logger: slog.Default()}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Search waits for a search slot, then delegates.
func (t *Throttled) Search(ctx context.Context, q Query, pageToken string) (Page, error) {
	if t.searches != nil {
		if err := t.searches.Wait(ctx); err != nil {
			return Page{}, fmt.Errorf("remote: waiting for search slot: %w", err)
		}
	}

	t.logger.Debug("search", slog.String("query", q.String()), slog.Bool("continuation", pageToken != ""))

	return t.store.Search(ctx, q, pageToken)
}

// CreateObject delegates with the content stream bandwidth-limited.
func (t *Throttled) CreateObject(ctx context.Context, meta Metadata, content io.Reader) (string, error) {
	return t.store.CreateObject(ctx, meta, t.bandwidth.WrapReader(ctx, content))
}

// GetContent delegates and bandwidth-limits the returned stream.
func (t *Throttled) GetContent(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := t.store.GetContent(ctx, id)
	if err != nil || t.bandwidth == nil {
		return rc, err
	}

	return readCloser{Reader: t.bandwidth.WrapReader(ctx, rc), Closer: rc}, nil
}

// Close closes the wrapped store if it holds resources.
func (t *Throttled) Close() error {
	if c, ok := t.store.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
