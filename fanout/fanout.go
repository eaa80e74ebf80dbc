// Package fanout runs independent operations with a cap on how many are in
// flight, keeping results in input order.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run calls fn for every item with at most limit calls outstanding and
// returns the results indexed like items. A limit <= 0 means unbounded.
// fn cannot fail; it must fold its own errors into R.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
