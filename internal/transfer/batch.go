package transfer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runBatch calls item for every index in [0, n) on at most o.workers
// goroutines. Items report failures through their own results and never
// return an error to the group, so one failing item cannot cancel its
// siblings. Cancellation of ctx still reaches every in-flight item.
func (o *Orchestrator) runBatch(ctx context.Context, n int, item func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}

	if o.workers == 1 || n == 1 {
		for i := range n {
			item(ctx, i)
		}

		return
	}

	var g errgroup.Group
	g.SetLimit(o.workers)

	for i := range n {
		g.Go(func() error {
			item(ctx, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // items never return errors
}
