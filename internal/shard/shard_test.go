package shard

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		n         int
		want      int
	}{
		{name: "explicit", requested: 4, n: 100, want: 4},
		{name: "more shards than items", requested: 8, n: 3, want: 3},
		{name: "no items", requested: 8, n: 0, want: 1},
		{name: "default", requested: 0, n: 1 << 20, want: runtime.GOMAXPROCS(0)},
		{name: "negative", requested: -1, n: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.requested, tt.n))
		})
	}
}

func TestSplit(t *testing.T) {
	for _, tc := range []struct{ n, shards int }{{10, 3}, {7, 7}, {1, 4}, {0, 2}, {100, 1}} {
		ranges := Split(tc.n, tc.shards)
		require.NotEmpty(t, ranges)

		// contiguous, covering, sizes differ by at most one
		lo := 0
		minSize, maxSize := tc.n, 0
		for _, r := range ranges {
			assert.Equal(t, lo, r.Lo)
			size := r.Hi - r.Lo
			minSize = min(minSize, size)
			maxSize = max(maxSize, size)
			lo = r.Hi
		}
		assert.Equal(t, tc.n, lo, "n=%d shards=%d", tc.n, tc.shards)
		assert.LessOrEqual(t, maxSize-minSize, 1)
	}

	assert.Equal(t, []Range{{0, 4}, {4, 7}, {7, 10}}, Split(10, 3))
}

func TestRun(t *testing.T) {
	ranges := Split(1000, 8)
	var total atomic.Int64
	err := Run(context.Background(), ranges, func(_ context.Context, _ int, r Range) error {
		total.Add(int64(r.Hi - r.Lo))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total.Load())
}

func TestRunError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), Split(10, 5), func(_ context.Context, idx int, _ Range) error {
		if idx == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Run(ctx, Split(4, 1), func(context.Context, int, Range) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
