// Package resolve maps slash-separated virtual paths onto the parent-ID
// graph of a remote store. Each directory component costs one search,
// anchored on the folder ID found for the component before it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// ErrResolutionIncomplete is returned by Result.Strict when a directory
// component could not be found.
var ErrResolutionIncomplete = errors.New("resolve: path not fully resolved")

// Chain is the ordered list of folder IDs for the resolved prefix of a
// path's directory portion. An empty chain means the top level.
type Chain []string

// Result is the outcome of resolving a path. Chain[i] is the ID of
// Components[i] for every i < Resolved.
type Result struct {
	Chain      Chain
	Components []string
	Resolved   int
}

// Complete reports whether every directory component was found.
func (r Result) Complete() bool {
	return r.Resolved == len(r.Components)
}

// Parent returns the innermost resolved folder ID, or "" for the top level.
func (r Result) Parent() string {
	if len(r.Chain) == 0 {
		return ""
	}

	return r.Chain[len(r.Chain)-1]
}

// Parents returns the parent list to attach to a new object: the innermost
// resolved folder, or nil for the top level.
func (r Result) Parents() []string {
	if p := r.Parent(); p != "" {
		return []string{p}
	}

	return nil
}

// Missing returns the directory components that were not found.
func (r Result) Missing() []string {
	return append([]string(nil), r.Components[r.Resolved:]...)
}

// Strict returns ErrResolutionIncomplete unless the result is complete.
func (r Result) Strict() error {
	if r.Complete() {
		return nil
	}

	return fmt.Errorf("%w: %q not found under %q",
		ErrResolutionIncomplete, r.Components[r.Resolved], joinComponents(r.Components[:r.Resolved]))
}

// Resolver walks virtual paths against a remote store.
type Resolver struct {
	store      remote.Store
	logger     *slog.Logger
	anchorRoot bool
	pageSize   int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithRootAnchor anchors the first component's search to the top-level
// folder. Without it the first component matches a folder of that name
// anywhere in the store.
func WithRootAnchor(anchor bool) Option {
	return func(r *Resolver) { r.anchorRoot = anchor }
}

// WithPageSize sets the page size of component searches. Only the first
// page is read, so a small page keeps the reply cheap.
func WithPageSize(n int) Option {
	return func(r *Resolver) { r.pageSize = n }
}

// New creates a Resolver over store.
func New(store remote.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, logger: slog.Default(), anchorRoot: true}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Resolve resolves the directory portion of p, that is every component but
// the leaf. Resolution stops at the first component with no match and
// returns the chain built so far with a nil error; callers decide whether
// an incomplete result is acceptable. When several folders match, the first
// one in result order wins. A transport failure aborts resolution and is
// returned together with the partial result.
func (r *Resolver) Resolve(ctx context.Context, p vpath.Path) (Result, error) {
	return r.resolveComponents(ctx, p.Dir())
}

// ResolveDir resolves every component of p, treating the whole path as a
// directory.
func (r *Resolver) ResolveDir(ctx context.Context, p vpath.Path) (Result, error) {
	return r.resolveComponents(ctx, p.Components())
}

func (r *Resolver) resolveComponents(ctx context.Context, dirs []string) (Result, error) {
	res := Result{Components: dirs, Chain: make(Chain, 0, len(dirs))}

	parent := ""
	if r.anchorRoot {
		parent = remote.RootID
	}

	for _, name := range dirs {
		q := remote.Query{
			Name:        name,
			FoldersOnly: true,
			ParentID:    parent,
			IDsOnly:     true,
			PageSize:    r.pageSize,
		}

		page, err := remote.First(ctx, r.store, q)
		if err != nil {
			return res, fmt.Errorf("resolve: searching for %q: %w", name, err)
		}

		if len(page.Objects) == 0 {
			r.logger.Debug("component not found",
				slog.String("component", name),
				slog.Int("depth", res.Resolved),
			)

			return res, nil
		}

		if len(page.Objects) > 1 {
			r.logger.Debug("ambiguous component, using first match",
				slog.String("component", name),
				slog.Int("matches", len(page.Objects)),
			)
		}

		parent = page.Objects[0].ID
		res.Chain = append(res.Chain, parent)
		res.Resolved++
	}

	return res, nil
}

func joinComponents(cs []string) string {
	if len(cs) == 0 {
		return vpath.Separator
	}

	return vpath.Separator + strings.Join(cs, vpath.Separator)
}
