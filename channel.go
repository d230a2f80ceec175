package chanflow

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrCompleted is returned by [Channel.Write] and [Channel.TryWrite]
	// once the channel has been completed.
	ErrCompleted = errors.New("chanflow: write to completed channel")

	// ErrFull is returned by [Channel.TryWrite] when a bounded channel
	// has no free slot.
	ErrFull = errors.New("chanflow: channel is full")
)

// Reader is the consuming end of a channel.
//
// Read suspends until an item is available. Once the producer completes
// the channel, Read keeps returning buffered items and then returns
// [io.EOF], or the fault the channel was completed with.
type Reader[T any] interface {
	Read(ctx context.Context) (T, error)
	TryRead() (T, bool)
	Len() int
	Done() <-chan struct{}
}

// Writer is the producing end of a channel.
type Writer[T any] interface {
	Write(ctx context.Context, v T) error
	TryWrite(v T) error
	Complete(err error) bool
}

// Channel is an asynchronous multi-producer multi-consumer FIFO queue
// with optional bounded capacity and one-shot completion.
//
// A capacity <= 0 makes the channel unbounded: writes never suspend.
// Suspended readers and writers wait in FIFO order and are woken one at
// a time as items arrive or slots free up, or all at once on completion.
type Channel[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	capacity int

	completed bool
	fault     error
	done      chan struct{} // closed by Complete

	readers waitQueue
	writers waitQueue
}

// NewChannel creates a channel. A capacity <= 0 means unbounded.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Channel[T]{
		capacity: capacity,
		done:     make(chan struct{}),
	}
}

// Write appends v, suspending while a bounded channel is full.
// It returns [ErrCompleted] after completion, or the context error if
// ctx is done before a slot frees up.
func (c *Channel[T]) Write(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		c.mu.Lock()
		if c.completed {
			c.mu.Unlock()
			return ErrCompleted
		}
		if c.hasRoomLocked() {
			c.pushLocked(v)
			c.mu.Unlock()
			return nil
		}
		w := c.writers.enqueue()
		c.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			c.mu.Lock()
			if !c.writers.remove(w) && c.hasRoomLocked() {
				// Signalled while giving up: pass the free slot on.
				c.writers.wakeOne()
			}
			c.mu.Unlock()
			return ctx.Err()
		}
	}
}

// TryWrite appends v without suspending. It returns [ErrFull] when a
// bounded channel has no free slot.
func (c *Channel[T]) TryWrite(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return ErrCompleted
	}
	if !c.hasRoomLocked() {
		return ErrFull
	}
	c.pushLocked(v)
	return nil
}

// Read removes and returns the oldest item, suspending while the channel
// is empty. After completion buffered items are still returned; then Read
// returns [io.EOF] or the completion fault. If ctx is done first, Read
// returns the context error.
func (c *Channel[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	for {
		c.mu.Lock()
		if c.lenLocked() > 0 {
			v := c.popLocked()
			c.mu.Unlock()
			return v, nil
		}
		if c.completed {
			err := c.endLocked()
			c.mu.Unlock()
			return zero, err
		}
		w := c.readers.enqueue()
		c.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			c.mu.Lock()
			if !c.readers.remove(w) && c.lenLocked() > 0 {
				c.readers.wakeOne()
			}
			c.mu.Unlock()
			return zero, ctx.Err()
		}
	}
}

// TryRead removes and returns the oldest item if one is buffered.
func (c *Channel[T]) TryRead() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lenLocked() == 0 {
		var zero T
		return zero, false
	}
	return c.popLocked(), true
}

// Complete marks the channel as finished. A nil err means a normal end
// of stream; a non-nil err is a fault that readers observe once the
// buffer is drained. Only the first call has an effect and reports true.
func (c *Channel[T]) Complete(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return false
	}
	c.completed = true
	c.fault = err
	close(c.done)
	c.readers.wakeAll()
	c.writers.wakeAll()
	return true
}

// Close completes the channel without a fault.
func (c *Channel[T]) Close() {
	c.Complete(nil)
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

// Cap returns the capacity; 0 means unbounded.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// Done returns a channel that is closed once [Channel.Complete] is
// called. Items may still be buffered at that point.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Err returns the completion fault, or nil if the channel is open or
// ended normally.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

func (c *Channel[T]) hasRoomLocked() bool {
	return c.capacity == 0 || c.lenLocked() < c.capacity
}

func (c *Channel[T]) lenLocked() int {
	return len(c.buf) - c.head
}

func (c *Channel[T]) pushLocked(v T) {
	c.buf = append(c.buf, v)
	c.readers.wakeOne()
}

func (c *Channel[T]) popLocked() T {
	var zero T
	v := c.buf[c.head]
	c.buf[c.head] = zero
	c.head++
	switch {
	case c.head == len(c.buf):
		c.buf = c.buf[:0]
		c.head = 0
	case c.head > 64 && c.head*2 >= len(c.buf):
		n := copy(c.buf, c.buf[c.head:])
		clear(c.buf[n:])
		c.buf = c.buf[:n]
		c.head = 0
	}
	if c.capacity > 0 {
		c.writers.wakeOne()
	}
	return v
}

func (c *Channel[T]) endLocked() error {
	if c.fault != nil {
		return c.fault
	}
	return io.EOF
}

// waitQueue is a FIFO of suspended goroutines. Each waiter owns a
// one-slot signal channel that receives at most one wake-up.
type waitQueue struct {
	waiters []chan struct{}
}

func (q *waitQueue) enqueue() chan struct{} {
	w := make(chan struct{}, 1)
	q.waiters = append(q.waiters, w)
	return w
}

func (q *waitQueue) wakeOne() {
	if len(q.waiters) == 0 {
		return
	}
	w := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	w <- struct{}{}
}

func (q *waitQueue) wakeAll() {
	for _, w := range q.waiters {
		w <- struct{}{}
	}
	q.waiters = nil
}

// remove drops w from the queue. It reports false if w was already
// dequeued, which means a signal was delivered to it.
func (q *waitQueue) remove(w chan struct{}) bool {
	for i, x := range q.waiters {
		if x == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}
