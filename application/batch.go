package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/supportflow/domain/state"
)

// ProcessBatch runs independent requests concurrently, at most the
// configured number at a time. Results are returned in input order.
func (e *Engine) ProcessBatch(ctx context.Context, inputs []state.Input) []Result {
	results := make([]Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = e.Process(gctx, in)
			return nil
		})
	}
	// Per-request failures live on each Result.
	_ = g.Wait()
	return results
}
