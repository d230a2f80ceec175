package chanflow

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"
	"sync/atomic"
)

// Strategy selects how a [Balancer] picks the next actor.
type Strategy int

const (
	// RoundRobin visits actors cyclically in construction order.
	RoundRobin Strategy = iota

	// LeastLoaded picks the actor with the smallest load. Ties go to the
	// actor that appears first.
	LeastLoaded

	// Random picks an actor uniformly at random.
	Random
)

// Even is an alias of [LeastLoaded].
const Even = LeastLoaded

func (s Strategy) valid() bool {
	return s >= RoundRobin && s <= Random
}

func (s Strategy) String() string {
	switch s {
	case RoundRobin:
		return "round-robin"
	case LeastLoaded:
		return "least-loaded"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Balancer distributes work over a fixed set of actors.
// Next is safe for concurrent use.
type Balancer[A any] interface {
	Next() A
	Actors() []A
}

// NewBalancer builds a balancer over actors. Nil actors are dropped and
// duplicates keep their first position. load reports the current load of
// an actor and is required by [LeastLoaded]; other strategies ignore it.
func NewBalancer[A comparable](s Strategy, actors []A, load func(A) int) (Balancer[A], error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: unknown balancing strategy %d", ErrInvalidArgument, int(s))
	}
	list := distinct(actors)
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: balancer needs at least one actor", ErrInvalidArgument)
	}

	switch s {
	case LeastLoaded:
		if load == nil {
			return nil, fmt.Errorf("%w: least-loaded balancer needs a load function", ErrInvalidArgument)
		}
		return &leastLoaded[A]{actors: list, load: load}, nil
	case Random:
		return &randomPick[A]{actors: list}, nil
	default:
		return &roundRobin[A]{actors: list}, nil
	}
}

type roundRobin[A any] struct {
	actors  []A
	counter atomic.Uint64
}

func (b *roundRobin[A]) Next() A {
	n := b.counter.Add(1) - 1
	return b.actors[n%uint64(len(b.actors))]
}

func (b *roundRobin[A]) Actors() []A { return b.actors }

type leastLoaded[A any] struct {
	actors []A
	load   func(A) int
}

func (b *leastLoaded[A]) Next() A {
	best := 0
	low := b.load(b.actors[0])
	for i := 1; i < len(b.actors); i++ {
		if l := b.load(b.actors[i]); l < low {
			best, low = i, l
		}
	}
	return b.actors[best]
}

func (b *leastLoaded[A]) Actors() []A { return b.actors }

// rngPool hands each caller its own generator; sync.Pool keeps them per P.
var rngPool = sync.Pool{
	New: func() any {
		var seed [32]byte
		_, _ = crand.Read(seed[:])
		return rand.New(rand.NewChaCha8(seed))
	},
}

type randomPick[A any] struct {
	actors []A
}

func (b *randomPick[A]) Next() A {
	r := rngPool.Get().(*rand.Rand)
	i := r.IntN(len(b.actors))
	rngPool.Put(r)
	return b.actors[i]
}

func (b *randomPick[A]) Actors() []A { return b.actors }

// distinct drops nil values and duplicates, keeping first occurrences.
// Values whose dynamic type cannot be hashed are kept as they are.
func distinct[A comparable](in []A) []A {
	seen := make(map[A]struct{}, len(in))
	out := make([]A, 0, len(in))
	for _, a := range in {
		if isNil(a) {
			continue
		}
		if !reflect.ValueOf(a).Comparable() {
			out = append(out, a)
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// channelBalancer routes over channels, using their buffered length as load.
func channelBalancer[T any](s Strategy, chans []*Channel[T]) (Balancer[*Channel[T]], error) {
	return NewBalancer(s, chans, func(c *Channel[T]) int { return c.Len() })
}
