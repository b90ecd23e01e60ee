// Package shard splits index ranges across workers.
package shard

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Range is a half-open index range [Lo, Hi)
type Range struct {
	Lo, Hi int
}

// Count normalizes a requested shard count: non-positive means GOMAXPROCS,
// and there are never more shards than items (but at least one).
func Count(requested, n int) int {
	shards := requested
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	if shards > n {
		shards = n
	}
	if shards < 1 {
		shards = 1
	}
	return shards
}

// Split divides n items into the given number of contiguous ranges
func Split(n, shards int) []Range {
	shards = Count(shards, n)
	out := make([]Range, 0, shards)
	size := n / shards
	rem := n % shards
	lo := 0
	for i := 0; i < shards; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, Range{Lo: lo, Hi: hi})
		lo = hi
	}
	return out
}

// Run calls fn once per range, concurrently. The first error cancels the
// remaining shards; a shard that has not started sees the cancelled context.
func Run(ctx context.Context, ranges []Range, fn func(ctx context.Context, idx int, r Range) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, r)
		})
	}
	return g.Wait()
}
