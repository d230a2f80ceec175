package chanflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testCtx returns a context that fails the test instead of hanging it.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func ints(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func fromSlice[T any](t *testing.T, items []T, opts ...Option) Reader[T] {
	t.Helper()
	r, err := FromSlice(context.Background(), items, opts...)
	require.NoError(t, err)
	return r
}

func collect[T any](t *testing.T, r Reader[T]) []T {
	t.Helper()
	items, err := ToSlice(testCtx(t), r)
	require.NoError(t, err)
	return items
}

// collectAll drains every reader concurrently.
func collectAll[T any](t *testing.T, rs []Reader[T]) [][]T {
	t.Helper()
	ctx := testCtx(t)
	out := make([][]T, len(rs))
	errs := make([]error, len(rs))
	done := make(chan int, len(rs))
	for i, r := range rs {
		go func() {
			out[i], errs[i] = ToSlice(ctx, r)
			done <- i
		}()
	}
	for range rs {
		<-done
	}
	for i, err := range errs {
		require.NoError(t, err, "reader %d", i)
	}
	return out
}

// taggedReader is a Reader value that cannot be used as a map key.
type taggedReader struct {
	*Channel[int]
	tags []string
}

func newTaggedReader(items ...int) taggedReader {
	c := NewChannel[int](0)
	for _, v := range items {
		_ = c.TryWrite(v)
	}
	c.Complete(nil)
	return taggedReader{Channel: c, tags: []string{"tagged"}}
}
