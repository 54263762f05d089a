// Package transfer performs path-addressed uploads, downloads, folder
// creation and searches against a remote store. It composes the session,
// the path resolver, the MIME table and the exclusion filter; every
// operation checks the session before touching the network.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/gdrive-go/internal/exclude"
	"github.com/tonimelisma/gdrive-go/internal/resolve"
	"github.com/tonimelisma/gdrive-go/internal/session"
)

// Sentinel errors.
var (
	ErrChecksumMismatch = errors.New("transfer: checksum mismatch")
	ErrEmptyPath        = errors.New("transfer: empty path")
)

// Op names a transfer operation in records and logs.
type Op string

// Operations.
const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpMkdir    Op = "mkdir"
)

// Status is the outcome of one transfer item.
type Status string

// Item outcomes.
const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Record describes one transfer item. Items of the same batch share a
// BatchID.
type Record struct {
	BatchID    string
	Op         Op
	LocalPath  string
	RemotePath string
	RemoteID   string
	Status     Status
	Err        string
	Bytes      int64
	At         time.Time
}

// Recorder receives a record per transfer item. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Orchestrator runs transfer operations for one session.
type Orchestrator struct {
	sess        *session.Session
	filter      *exclude.Filter
	logger      *slog.Logger
	recorder    Recorder
	downloadDir string
	workers     int
	strict      bool
	hashRetries int
	resolveOpts []resolve.Option
	now         func() time.Time
	newBatchID  func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithRecorder sends a record for every transfer item to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithDownloadDir sets the local directory downloads are written to.
func WithDownloadDir(dir string) Option {
	return func(o *Orchestrator) { o.downloadDir = dir }
}

// WithWorkers sets how many batch items run at once. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithStrictPaths makes uploads and folder creation fail with
// resolve.ErrResolutionIncomplete when a parent folder is missing, instead
// of placing the object under the deepest folder that was found.
func WithStrictPaths(strict bool) Option {
	return func(o *Orchestrator) { o.strict = strict }
}

// WithHashRetries sets how many times a download is repeated after a
// checksum mismatch before giving up.
func WithHashRetries(n int) Option {
	return func(o *Orchestrator) { o.hashRetries = n }
}

// WithResolverOptions passes options to every path resolver.
func WithResolverOptions(opts ...resolve.Option) Option {
	return func(o *Orchestrator) { o.resolveOpts = append(o.resolveOpts, opts...) }
}

// WithExclusions seeds the exclusion filter.
func WithExclusions(f *exclude.Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

const defaultHashRetries = 2

// New creates an Orchestrator over sess.
func New(sess *session.Session, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sess:        sess,
		logger:      slog.Default(),
		workers:     1,
		hashRetries: defaultHashRetries,
		now:         time.Now,
		newBatchID:  func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.filter == nil {
		o.filter, _ = exclude.New() //nolint:errcheck // no seed, cannot fail
	}

	if o.downloadDir == "" {
		o.downloadDir = DefaultDownloadDir()
	}

	if o.workers < 1 {
		o.workers = 1
	}

	return o
}

// DefaultDownloadDir returns ~/Downloads, or "Downloads" relative to the
// working directory when the home directory is unknown.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}

	return filepath.Join(home, "Downloads")
}

// Exclude adds an extension to the exclusion set. Adding the same extension
// twice fails with exclude.ErrDuplicateExclusion.
func (o *Orchestrator) Exclude(ext string) error {
	if err := o.filter.Exclude(ext); err != nil {
		return err
	}

	o.logger.Debug("extension excluded", slog.String("ext", ext))

	return nil
}

// Excluded returns the excluded extensions in the order they were added.
func (o *Orchestrator) Excluded() []string {
	return o.filter.Extensions()
}

// DownloadDir returns the local download directory.
func (o *Orchestrator) DownloadDir() string {
	return o.downloadDir
}

// active returns the session handle and a resolver bound to its store.
func (o *Orchestrator) active(ctx context.Context) (session.Handle, *resolve.Resolver, error) {
	h, err := o.sess.EnsureActive(ctx)
	if err != nil {
		return session.Handle{}, nil, err
	}

	opts := append([]resolve.Option{resolve.WithLogger(o.logger)}, o.resolveOpts...)

	return h, resolve.New(h.Store, opts...), nil
}

// record forwards rec to the recorder. Recorder failures are logged only.
func (o *Orchestrator) record(ctx context.Context, rec Record) {
	if o.recorder == nil {
		return
	}

	if rec.At.IsZero() {
		rec.At = o.now()
	}

	if err := o.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("recording transfer failed",
			slog.String("op", string(rec.Op)),
			slog.String("error", err.Error()),
		)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

func statusOf(err error) Status {
	if err == nil {
		return StatusOK
	}

	return StatusFailed
}

// wrapOp prefixes err with the operation and path.
func wrapOp(op Op, path string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s %s: %w", op, path, err)
}
