package remote

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/time/rate"
)

// burstMultiplier sizes the token bucket relative to the per-second rate.
const burstMultiplier = 2

// Bandwidth limits aggregate content throughput. One limiter is shared by
// every concurrent upload and download. A nil *Bandwidth is unlimited.
type Bandwidth struct {
	limiter *rate.Limiter
}

// NewBandwidth returns a limiter for bytesPerSec, or nil when bytesPerSec
// is zero (unlimited).
func NewBandwidth(bytesPerSec int64, logger *slog.Logger) *Bandwidth {
	if bytesPerSec <= 0 {
		return nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	burst := int(bytesPerSec) * burstMultiplier
	logger.Debug("bandwidth limiter created",
		slog.Int64("bytes_per_sec", bytesPerSec),
		slog.Int("burst", burst),
	)

	return &Bandwidth{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

// WrapReader returns a rate-limited reader. With a nil receiver r is
// returned unchanged. If r implements io.Seeker so does the result, so
// transports can rewind the body to retry an upload.
func (b *Bandwidth) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if b == nil || r == nil {
		return r
	}

	lr := &limitedReader{r: r, limiter: b.limiter, ctx: ctx}
	if s, ok := r.(io.Seeker); ok {
		return &limitedReadSeeker{limitedReader: lr, seeker: s}
	}

	return lr
}

type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *limitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if waitErr := waitN(r.ctx, r.limiter, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

type limitedReadSeeker struct {
	*limitedReader
	seeker io.Seeker
}

func (r *limitedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.seeker.Seek(offset, whence)
}

// waitN splits a large token request into burst-sized chunks, since
// rate.Limiter.WaitN rejects requests larger than the burst.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		take := min(n, burst)

		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}

		n -= take
	}

	return nil
}
