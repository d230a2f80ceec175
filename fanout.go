package chanflow

import (
	"context"
	"fmt"
	"slices"
)

var errNilReader = fmt.Errorf("%w: nil reader", ErrInvalidArgument)

// begin checks ctx and resolves the per-call options.
func begin(ctx context.Context, opts []Option) (Options, error) {
	if err := ctx.Err(); err != nil {
		return Options{}, err
	}
	return NewOptions(opts...)
}

func makeChannels[T any](n, capacity int) []*Channel[T] {
	out := make([]*Channel[T], n)
	for i := range out {
		out[i] = NewChannel[T](capacity)
	}
	return out
}

func readers[T any](chans []*Channel[T]) []Reader[T] {
	out := make([]Reader[T], len(chans))
	for i, c := range chans {
		out[i] = c
	}
	return out
}

// Split partitions r into DegreeOfParallelism readers. Every item goes to
// exactly one of them, chosen by the configured [Strategy]. With a degree
// of 1, r itself is returned.
//
// All outputs complete when r ends, with r's fault if it had one.
func Split[T any](ctx context.Context, r Reader[T], opts ...Option) ([]Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	n := o.DegreeOfParallelism()
	if n == 1 {
		return []Reader[T]{r}, nil
	}

	outs := makeChannels[T](n, o.Capacity())
	bal, err := channelBalancer(o.Strategy(), outs)
	if err != nil {
		return nil, err
	}

	st := newStage(ctx, "split", o)
	st.spawn("route", func(ctx context.Context) error {
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			if err := write(ctx, st, bal.Next(), v); err != nil {
				return err
			}
		}
	})
	st.finish(completers(outs)...)
	return readers(outs), nil
}

// Spread duplicates r into count readers: every item is written to every
// output, in output order. With a bounded capacity the slowest consumer
// paces all of them. A count of 1 returns r itself.
func Spread[T any](ctx context.Context, r Reader[T], count int, opts ...Option) ([]Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: spread count must be positive, got %d", ErrInvalidArgument, count)
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	if count == 1 {
		return []Reader[T]{r}, nil
	}

	outs := makeChannels[T](count, o.Capacity())
	st := newStage(ctx, "spread", o)
	st.spawn("broadcast", func(ctx context.Context) error {
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			for _, c := range outs {
				if err := write(ctx, st, c, v); err != nil {
					return err
				}
			}
		}
	})
	st.finish(completers(outs)...)
	return readers(outs), nil
}

// Fork creates one reader per predicate. An item is written to output i
// when predicates[i] reports true for it; a nil predicate accepts every
// item. Outputs are not exclusive.
//
// With no predicates Fork returns no readers. With exactly one it returns
// r itself without applying the predicate.
func Fork[T any](ctx context.Context, r Reader[T], predicates []func(T) bool, opts ...Option) ([]Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	switch len(predicates) {
	case 0:
		return []Reader[T]{}, nil
	case 1:
		return []Reader[T]{r}, nil
	}

	predicates = slices.Clone(predicates)
	outs := makeChannels[T](len(predicates), o.Capacity())
	st := newStage(ctx, "fork", o)
	st.spawn("fork", func(ctx context.Context) error {
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			for i, pred := range predicates {
				if pred != nil && !pred(v) {
					continue
				}
				if err := write(ctx, st, outs[i], v); err != nil {
					return err
				}
			}
		}
	})
	st.finish(completers(outs)...)
	return readers(outs), nil
}

// ForkN forks r into n full copies. It is [Fork] with n nil predicates.
func ForkN[T any](ctx context.Context, r Reader[T], n int, opts ...Option) ([]Reader[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: fork count must not be negative, got %d", ErrInvalidArgument, n)
	}
	return Fork(ctx, r, make([]func(T) bool, n), opts...)
}
