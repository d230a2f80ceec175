package chanflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"
)

// PoolStats provides a point-in-time snapshot of a worker pool.
type PoolStats struct {
	Routed     int64 // items handed to a worker queue
	Processed  int64 // items finished (success + error)
	Errored    int64 // items whose callback failed or panicked
	InFlight   int64 // items currently being processed
	QueueDepth int   // items waiting in worker queues
	Workers    int   // worker count
}

// pool feeds one queue per worker from a source reader. A router picks
// the queue for every item with the configured balancer; each worker
// drains only its own queue, one item at a time.
type pool[T any] struct {
	st     *stage
	queues []*Channel[T]
	bal    Balancer[*Channel[T]]
	done   chan struct{}
	ticker chan struct{} // closed when the stats ticker exits

	routed    atomic.Int64
	processed atomic.Int64
	errored   atomic.Int64
	inFlight  atomic.Int64
}

func newPool[T any](ctx context.Context, name string, o Options) (*pool[T], error) {
	queues := makeChannels[T](o.DegreeOfParallelism(), o.Capacity())
	bal, err := channelBalancer(o.Strategy(), queues)
	if err != nil {
		return nil, err
	}
	return &pool[T]{
		st:     newStage(ctx, name, o),
		queues: queues,
		bal:    bal,
		done:   make(chan struct{}),
	}, nil
}

// run starts the router, the workers and the stats ticker.
func (p *pool[T]) run(src Reader[T], handle func(ctx context.Context, v T) error) {
	p.st.spawn("route", func(ctx context.Context) (err error) {
		defer func() {
			for _, q := range p.queues {
				q.Complete(unwrapUpstream(err))
			}
		}()
		for {
			v, ok, err := read(ctx, p.st, src)
			if err != nil || !ok {
				return err
			}
			if err := p.bal.Next().Write(ctx, v); err != nil {
				return err
			}
			p.routed.Add(1)
		}
	})

	for i, q := range p.queues {
		p.st.spawn("worker-"+strconv.Itoa(i), func(ctx context.Context) error {
			return p.work(ctx, q, handle)
		})
	}

	if p.st.opts.onStats != nil {
		p.ticker = make(chan struct{})
		go p.tick(p.st.opts.statsInterval, p.st.opts.onStats)
	}
}

func (p *pool[T]) work(ctx context.Context, q *Channel[T], handle func(context.Context, T) error) error {
	for {
		v, err := q.Read(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return &upstreamFault{err: err}
		}

		p.inFlight.Add(1)
		err = catch(func() error { return handle(ctx, v) })
		p.inFlight.Add(-1)
		p.processed.Add(1)
		if err != nil {
			p.errored.Add(1)
			return err
		}
	}
}

func (p *pool[T]) tick(interval time.Duration, fn func(PoolStats)) {
	defer close(p.ticker)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := p.stats()
			p.st.opts.sink.SetGaugeWithLabels(MetricPoolQueueLength, float32(stats.QueueDepth), p.st.labels)
			fn(stats)
		case <-p.done:
			return
		}
	}
}

// wait joins the pool and returns its outcome.
func (p *pool[T]) wait() error {
	err := p.st.wait()
	close(p.done)
	if p.ticker != nil {
		<-p.ticker
	}

	sink := p.st.opts.sink
	sink.IncrCounterWithLabels(MetricPoolProcessed, float32(p.processed.Load()), p.st.labels)
	sink.IncrCounterWithLabels(MetricPoolErrored, float32(p.errored.Load()), p.st.labels)
	stats := p.stats()
	p.st.log.V(logVerbose).Info("Pool drained", "workers", stats.Workers,
		"routed", stats.Routed, "processed", stats.Processed, "errored", stats.Errored)
	if p.st.opts.onStats != nil {
		p.st.opts.onStats(stats)
	}
	return err
}

func (p *pool[T]) stats() PoolStats {
	depth := 0
	for _, q := range p.queues {
		depth += q.Len()
	}
	return PoolStats{
		Routed:     p.routed.Load(),
		Processed:  p.processed.Load(),
		Errored:    p.errored.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: depth,
		Workers:    len(p.queues),
	}
}

// ForAll runs action on every item of r using DegreeOfParallelism
// workers. Each worker owns a queue and processes its items sequentially;
// the configured [Strategy] decides which queue receives an item.
//
// ForAll returns once every routed item has been processed. The first
// action error or panic stops the router and every other worker, and is
// returned as a [*StageError]. If ctx is cancelled, ForAll returns the
// context error.
func ForAll[T any](ctx context.Context, r Reader[T], action func(context.Context, T) error, opts ...Option) error {
	if r == nil {
		return errNilReader
	}
	if action == nil {
		return fmt.Errorf("%w: nil action", ErrInvalidArgument)
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return err
	}

	p, err := newPool[T](ctx, "for-all", o)
	if err != nil {
		return err
	}
	p.run(r, action)
	return p.wait()
}

// ForEach maps every item of r through selector using DegreeOfParallelism
// workers and writes the results to the returned reader. Results are not
// ordered when more than one worker runs.
//
// The first selector error or panic stops the pool and faults the output.
func ForEach[S, T any](ctx context.Context, r Reader[S], selector func(context.Context, S) (T, error), opts ...Option) (Reader[T], error) {
	if r == nil {
		return nil, errNilReader
	}
	if selector == nil {
		return nil, fmt.Errorf("%w: nil selector", ErrInvalidArgument)
	}
	o, err := begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	p, err := newPool[S](ctx, "for-each", o)
	if err != nil {
		return nil, err
	}
	out := NewChannel[T](o.Capacity())
	p.run(r, func(ctx context.Context, v S) error {
		res, err := selector(ctx, v)
		if err != nil {
			return err
		}
		return write(ctx, p.st, out, res)
	})
	go func() {
		out.Complete(p.wait())
	}()
	return out, nil
}
