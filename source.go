package chanflow

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/baxromumarov/chanflow/chanx"
)

// Empty returns a reader that is already at end of stream.
func Empty[T any]() Reader[T] {
	c := NewChannel[T](0)
	c.Complete(nil)
	return c
}

// FromSlice returns a reader yielding items in order.
//
// With unbounded capacity (the default) the items are buffered and the
// channel completed before FromSlice returns. With a bounded capacity a
// producer goroutine feeds the channel until items are exhausted or ctx
// is cancelled.
func FromSlice[T any](ctx context.Context, items []T, opts ...Option) (Reader[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	out := NewChannel[T](o.Capacity())
	if o.Capacity() == 0 {
		for _, v := range items {
			if err := out.TryWrite(v); err != nil {
				return nil, err
			}
		}
		out.Complete(nil)
		return out, nil
	}

	st := newStage(ctx, "from-slice", o)
	st.spawn("produce", func(ctx context.Context) error {
		for _, v := range items {
			if err := write(ctx, st, out, v); err != nil {
				return err
			}
		}
		return nil
	})
	st.finish(out)
	return out, nil
}

// FromChan returns a reader that yields values received from ch until ch
// is closed.
func FromChan[T any](ctx context.Context, ch <-chan T, opts ...Option) (Reader[T], error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	out := NewChannel[T](o.Capacity())
	st := newStage(ctx, "from-chan", o)
	st.spawn("receive", func(ctx context.Context) error {
		return chanx.Forward(ctx, ch, func(v T) error {
			st.itemsIn.Add(1)
			return write(ctx, st, out, v)
		})
	})
	st.finish(out)
	return out, nil
}

// ToSlice reads r until it ends. It returns the items read so far
// together with the fault or cancellation error that ended the read.
func ToSlice[T any](ctx context.Context, r Reader[T]) ([]T, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidArgument)
	}
	var items []T
	for {
		v, err := r.Read(ctx)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, v)
	}
}

// Drain reads and discards r until it ends.
func Drain[T any](ctx context.Context, r Reader[T]) error {
	if r == nil {
		return fmt.Errorf("%w: nil reader", ErrInvalidArgument)
	}
	for {
		_, err := r.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ToChan forwards r into a native channel. The value channel is closed
// when r ends or ctx is cancelled; the error channel then receives the
// outcome (nil on a clean end) and is closed.
func ToChan[T any](ctx context.Context, r Reader[T]) (<-chan T, <-chan error) {
	ch := make(chan T)
	errCh := make(chan error, 1)
	if r == nil {
		close(ch)
		errCh <- fmt.Errorf("%w: nil reader", ErrInvalidArgument)
		close(errCh)
		return ch, errCh
	}

	o, _ := NewOptions()
	st := newStage(ctx, "to-chan", o)
	st.spawn("forward", func(ctx context.Context) error {
		defer close(ch)
		for {
			v, ok, err := read(ctx, st, r)
			if err != nil || !ok {
				return err
			}
			if err := chanx.Send(ctx, ch, v); err != nil {
				return err
			}
			st.itemsOut.Add(1)
		}
	})
	go func() {
		errCh <- st.wait()
		close(errCh)
	}()
	return ch, errCh
}
