package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// FindByName returns every object named exactly name.
func (o *Orchestrator) FindByName(ctx context.Context, name string) ([]remote.Object, error) {
	return o.find(ctx, "name", remote.Query{Name: vpath.Normalize(name)})
}

// FindByExtension returns every object whose name contains ext.
func (o *Orchestrator) FindByExtension(ctx context.Context, ext string) ([]remote.Object, error) {
	return o.find(ctx, "extension", remote.Query{NameContains: vpath.Normalize(ext)})
}

// FindDirectory returns every folder named exactly name.
func (o *Orchestrator) FindDirectory(ctx context.Context, name string) ([]remote.Object, error) {
	return o.find(ctx, "directory", remote.Query{Name: vpath.Normalize(name), FoldersOnly: true})
}

// find drains every page of q. Any failed page discards the partial result.
func (o *Orchestrator) find(ctx context.Context, kind string, q remote.Query) ([]remote.Object, error) {
	h, _, err := o.active(ctx)
	if err != nil {
		return nil, err
	}

	objs, err := remote.All(ctx, h.Store, q)
	if err != nil {
		return nil, fmt.Errorf("find by %s: %w", kind, err)
	}

	o.logger.Debug("find complete",
		slog.String("kind", kind),
		slog.String("query", q.String()),
		slog.Int("results", len(objs)),
	)

	return objs, nil
}
