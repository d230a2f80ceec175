package chanflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Merge combines readers into one. Nil and duplicate readers are ignored.
// With no readers left Merge returns an empty reader; with one it returns
// that reader.
//
// Each input is pumped by its own goroutine, so order is kept per input
// but not across inputs. The output completes once every input has
// ended. If any input faults, the other pumps stop and the output is
// completed with that fault.
//
// Nil readers are dropped and repeated readers are merged once. Readers
// whose dynamic type is not comparable are never treated as repeats.
func Merge[T any](ctx context.Context, rs []Reader[T], opts ...Option) (Reader[T], error) {
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	inputs := distinct(rs)
	switch len(inputs) {
	case 0:
		return Empty[T](), nil
	case 1:
		return inputs[0], nil
	}

	out := NewChannel[T](o.Capacity())
	st := newStage(ctx, "merge", o)
	st.spawn("join", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, in := range inputs {
			g.Go(func() error {
				return catch(func() error { return forward(gctx, st, in, out) })
			})
		}
		return g.Wait()
	})
	st.finish(out)
	return out, nil
}

// Join merges readers with default options.
func Join[T any](ctx context.Context, rs ...Reader[T]) (Reader[T], error) {
	return Merge(ctx, rs)
}

// Attach merges others into r.
func Attach[T any](ctx context.Context, r Reader[T], others []Reader[T], opts ...Option) (Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	all := make([]Reader[T], 0, len(others)+1)
	all = append(all, r)
	all = append(all, others...)
	return Merge(ctx, all, opts...)
}

// Detach tees r. Every item is written to main, and items for which cond
// reports true are also written to detached. A nil cond matches every
// item.
//
// Both outputs are fed by a single goroutine, so with a bounded capacity
// they must be consumed concurrently.
func Detach[T any](ctx context.Context, r Reader[T], cond func(T) bool, opts ...Option) (main, detached Reader[T], err error) {
	if r == nil {
		return nil, nil, errNilReader
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	mainCh := NewChannel[T](o.Capacity())
	detachedCh := NewChannel[T](o.Capacity())
	st := newStage(ctx, "detach", o)
	st.spawn("tee", func(ctx context.Context) error {
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			if err := write(ctx, st, mainCh, v); err != nil {
				return err
			}
			if cond != nil && !cond(v) {
				continue
			}
			if err := write(ctx, st, detachedCh, v); err != nil {
				return err
			}
		}
	})
	st.finish(mainCh, detachedCh)
	return mainCh, detachedCh, nil
}

// DetachAttach routes the items of r that match cond through pipeline
// and merges its output back with the items that did not match.
//
// pipeline is called once, before DetachAttach returns, with the reader
// of matching items; an error from it is returned as is. The result
// completes after both the direct path and the pipeline output have
// ended.
func DetachAttach[T any](
	ctx context.Context,
	r Reader[T],
	cond func(T) bool,
	pipeline func(context.Context, Reader[T]) (Reader[T], error),
	opts ...Option,
) (Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	if cond == nil {
		return nil, fmt.Errorf("%w: nil condition", ErrInvalidArgument)
	}
	if pipeline == nil {
		return nil, fmt.Errorf("%w: nil pipeline", ErrInvalidArgument)
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := NewChannel[T](o.Capacity())
	detached := NewChannel[T](o.Capacity())
	st := newStage(ctx, "detach-attach", o)

	processed, err := pipeline(st.ctx, detached)
	if err == nil && processed == nil {
		err = fmt.Errorf("%w: pipeline returned a nil reader", ErrInvalidArgument)
	}
	if err != nil {
		detached.Complete(err)
		st.recordError("pipeline", err)
		_ = st.wait()
		return nil, err
	}

	st.spawn("direct", func(ctx context.Context) (err error) {
		defer func() { detached.Complete(unwrapUpstream(err)) }()
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			dst := out
			if cond(v) {
				dst = detached
			}
			if err := write(ctx, st, dst, v); err != nil {
				return err
			}
		}
	})
	st.spawn("attach", func(ctx context.Context) error {
		return forward(ctx, st, processed, out)
	})
	st.finish(out)
	return out, nil
}

// forward copies in to out until in ends.
func forward[T any](ctx context.Context, st *stage, in Reader[T], out Writer[T]) error {
	for {
		v, ok, err := read(ctx, st, in)
		if err != nil || !ok {
			return err
		}
		if err := write(ctx, st, out, v); err != nil {
			return err
		}
	}
}
