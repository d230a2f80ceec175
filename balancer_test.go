package chanflow

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancer_RoundRobinOrder(t *testing.T) {
	t.Parallel()
	b, err := NewBalancer(RoundRobin, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	expectedOrder := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, want := range expectedOrder {
		assert.Equal(t, want, b.Next(), "selection %d should be %s", i+1, want)
	}
}

func TestBalancer_RoundRobinEvenDistribution(t *testing.T) {
	t.Parallel()
	actors := []string{"a", "b", "c", "d"}
	b, err := NewBalancer(RoundRobin, actors, nil)
	require.NoError(t, err)

	const perActor = 250
	counts := make(map[string]int)
	for range perActor * len(actors) {
		counts[b.Next()]++
	}
	for _, a := range actors {
		assert.Equal(t, perActor, counts[a], "actor %s", a)
	}
}

func TestBalancer_RoundRobinConcurrency(t *testing.T) {
	t.Parallel()
	actors := []int{1, 2, 3}
	b, err := NewBalancer(RoundRobin, actors, nil)
	require.NoError(t, err)

	var counts [4]atomic.Int64
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 30
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range perGoroutine {
				counts[b.Next()].Add(1)
			}
		}()
	}
	wg.Wait()

	for _, a := range actors {
		assert.Equal(t, int64(goroutines*perGoroutine/len(actors)), counts[a].Load(),
			"atomic counter must give every actor an exact share")
	}
}

func TestBalancer_LeastLoadedPicksMinimum(t *testing.T) {
	t.Parallel()
	loads := map[string]int{"w0": 5, "w1": 2, "w2": 2, "w3": 8}
	b, err := NewBalancer(LeastLoaded, []string{"w0", "w1", "w2", "w3"}, func(a string) int { return loads[a] })
	require.NoError(t, err)

	for range 10 {
		assert.Equal(t, "w1", b.Next(), "ties go to the lowest index")
	}

	loads["w3"] = 0
	assert.Equal(t, "w3", b.Next())
}

func TestBalancer_LeastLoadedOverChannels(t *testing.T) {
	t.Parallel()
	chans := makeChannels[int](3, 0)
	b, err := channelBalancer(Even, chans)
	require.NoError(t, err)

	for i := range 9 {
		require.NoError(t, b.Next().TryWrite(i))
	}
	for _, c := range chans {
		assert.Equal(t, 3, c.Len(), "writes to the least loaded channel keep lengths level")
	}
}

func TestBalancer_RandomCoversAllActors(t *testing.T) {
	t.Parallel()
	actors := []string{"a", "b", "c", "d"}
	b, err := NewBalancer(Random, actors, nil)
	require.NoError(t, err)

	counts := make(map[string]int)
	const n = 100_000
	for range n {
		counts[b.Next()]++
	}
	for _, a := range actors {
		// Within 5% of the uniform share of 25,000.
		assert.InDelta(t, 25_000, counts[a], 1_250, "actor %s", a)
	}
}

func TestBalancer_RandomConcurrency(t *testing.T) {
	t.Parallel()
	b, err := NewBalancer(Random, []int{1, 2}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var total atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				v := b.Next()
				assert.Contains(t, []int{1, 2}, v)
				total.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(4000), total.Load())
}

func TestBalancer_DeduplicatesAndDropsNil(t *testing.T) {
	t.Parallel()
	c1, c2 := NewChannel[int](0), NewChannel[int](0)
	b, err := NewBalancer(RoundRobin, []*Channel[int]{nil, c1, c2, c1, nil, c2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []*Channel[int]{c1, c2}, b.Actors())
}

func TestBalancer_KeepsUnhashableActors(t *testing.T) {
	t.Parallel()
	c := NewChannel[int](0)
	tagged := newTaggedReader(1)

	b, err := NewBalancer(RoundRobin, []Reader[int]{c, tagged, nil, c}, nil)
	require.NoError(t, err)
	require.Len(t, b.Actors(), 2)
	assert.Same(t, c, b.Actors()[0])
	assert.Equal(t, tagged, b.Actors()[1])
}

func TestBalancer_InvalidInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		strategy Strategy
		actors   []*Channel[int]
		load     func(*Channel[int]) int
	}{
		{name: "no actors", strategy: RoundRobin},
		{name: "only nil actors", strategy: Random, actors: []*Channel[int]{nil, nil}},
		{name: "unknown strategy", strategy: Strategy(42), actors: makeChannels[int](1, 0)},
		{name: "least loaded without load", strategy: LeastLoaded, actors: makeChannels[int](2, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBalancer(tc.strategy, tc.actors, tc.load)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestStrategy_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "round-robin", RoundRobin.String())
	assert.Equal(t, "least-loaded", Even.String())
	assert.Equal(t, "random", Random.String())
	assert.Equal(t, fmt.Sprintf("Strategy(%d)", 9), Strategy(9).String())
}
