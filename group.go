package chanflow

import (
	"context"
	"fmt"
)

// Group is a keyed sub-stream emitted by [GroupBy] and [GroupByAdjacent].
// It is itself a [Reader] of the values that share its key.
type Group[K comparable, V any] struct {
	Reader[V]
	key K
	ch  *Channel[V]
}

func newGroup[K comparable, V any](key K, capacity int) *Group[K, V] {
	ch := NewChannel[V](capacity)
	return &Group[K, V]{Reader: ch, key: key, ch: ch}
}

// Key returns the key shared by every value of the group.
func (g *Group[K, V]) Key() K { return g.key }

func (g *Group[K, V]) String() string {
	return fmt.Sprintf("Group(%v)", g.key)
}

func identity[T any](v T) T { return v }

// GroupBy partitions r by key. A group is emitted on the returned reader
// the first time its key is seen, before its first value is written.
// When r ends every group is completed, then the returned reader. A fault
// or cancellation completes every group and the returned reader with
// that outcome.
//
// GroupBy keeps every group open until r ends, so memory grows with the
// number of distinct keys. Group channels use the configured capacity:
// with a bounded capacity, groups must be consumed concurrently.
func GroupBy[T any, K comparable](ctx context.Context, r Reader[T], key func(T) K, opts ...Option) (Reader[*Group[K, T]], error) {
	return GroupBySelect(ctx, r, key, identity[T], opts...)
}

// GroupBySelect is [GroupBy] with a projection applied to every value
// before it is written to its group.
func GroupBySelect[T any, K comparable, V any](
	ctx context.Context,
	r Reader[T],
	key func(T) K,
	value func(T) V,
	opts ...Option,
) (Reader[*Group[K, V]], error) {
	if err := checkGrouping(r, key, value); err != nil {
		return nil, err
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := NewChannel[*Group[K, V]](o.Capacity())
	groups := make(map[K]*Group[K, V])
	st := newStage(ctx, "group-by", o)
	st.spawn("group", func(ctx context.Context) error {
		for {
			item, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			k := key(item)
			g, found := groups[k]
			if !found {
				g = newGroup[K, V](k, o.Capacity())
				groups[k] = g
				st.groupCreated(k)
				if err := out.Write(ctx, g); err != nil {
					return err
				}
			}
			if err := write(ctx, st, g.ch, value(item)); err != nil {
				return err
			}
		}
	})
	go func() {
		err := st.wait()
		for _, g := range groups {
			g.ch.Complete(err)
		}
		out.Complete(err)
	}()
	return out, nil
}

// GroupByAdjacent splits r into runs of consecutive items with equal
// keys. Only one group is open at a time: when the key changes, or r
// ends, the open group is completed and emitted, and the next one
// starts.
//
// A group's values are buffered until the group is emitted, so group
// channels are unbounded regardless of the configured capacity, which
// applies to the returned reader only.
func GroupByAdjacent[T any, K comparable](ctx context.Context, r Reader[T], key func(T) K, opts ...Option) (Reader[*Group[K, T]], error) {
	return GroupByAdjacentSelect(ctx, r, key, identity[T], opts...)
}

// GroupByAdjacentSelect is [GroupByAdjacent] with a projection applied to
// every value before it is written to its group.
func GroupByAdjacentSelect[T any, K comparable, V any](
	ctx context.Context,
	r Reader[T],
	key func(T) K,
	value func(T) V,
	opts ...Option,
) (Reader[*Group[K, V]], error) {
	if err := checkGrouping(r, key, value); err != nil {
		return nil, err
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := NewChannel[*Group[K, V]](o.Capacity())
	var open *Group[K, V]
	st := newStage(ctx, "group-by-adjacent", o)
	st.spawn("group", func(ctx context.Context) error {
		emit := func() error {
			g := open
			open = nil
			g.ch.Complete(nil)
			return out.Write(ctx, g)
		}
		for {
			item, ok, err := read(ctx, st, r)
			if err != nil {
				return err
			}
			if !ok {
				if open != nil {
					return emit()
				}
				return nil
			}
			k := key(item)
			if open != nil && open.key != k {
				if err := emit(); err != nil {
					return err
				}
			}
			if open == nil {
				open = newGroup[K, V](k, 0)
				st.groupCreated(k)
			}
			if err := write(ctx, st, open.ch, value(item)); err != nil {
				return err
			}
		}
	})
	go func() {
		err := st.wait()
		if open != nil {
			open.ch.Complete(err)
		}
		out.Complete(err)
	}()
	return out, nil
}

func checkGrouping[T, K, V any](r Reader[T], key func(T) K, value func(T) V) error {
	switch {
	case r == nil:
		return errNilReader
	case key == nil:
		return fmt.Errorf("%w: nil key selector", ErrInvalidArgument)
	case value == nil:
		return fmt.Errorf("%w: nil value selector", ErrInvalidArgument)
	}
	return nil
}

func (s *stage) groupCreated(key any) {
	s.opts.sink.IncrCounterWithLabels(MetricGroupsCreated, 1, s.labels)
	s.log.V(logTrace).Info("Group created", "key", key)
}
