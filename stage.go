package chanflow

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
)

// completer is the part of a channel a stage finalizer needs.
type completer interface {
	Complete(err error) bool
}

// stage owns every goroutine started by one combinator call.
//
// Tasks share a context derived from the caller's. The first task that
// fails records its error and cancels the others. A task that returns
// because that context was cancelled is not a fault. Panics are captured
// as [*PanicError]. Once every task has returned, the stage outcome is
// the first fault, or the cancellation error if a task observed the
// caller cancelling, or nil.
type stage struct {
	name   string
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc
	opts   Options
	log    logr.Logger
	labels []metrics.Label
	start  time.Time

	wg   sync.WaitGroup
	open atomic.Bool

	errOnce   sync.Once
	firstErr  error
	cancelled atomic.Bool

	finOnce sync.Once
	finErr  error

	spawned  atomic.Int64
	active   atomic.Int64
	itemsIn  atomic.Int64
	itemsOut atomic.Int64
}

func newStage(parent context.Context, name string, o Options) *stage {
	ctx, cancel := context.WithCancelCause(parent)
	id := uuid.NewString()
	s := &stage{
		name:   name,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		opts:   o,
		log:    loggerFor(parent, o).WithValues("stage", name, "stageID", id),
		labels: append(slices.Clone(o.metricLabels), LabelCombinator.M(name)),
		start:  time.Now(),
	}
	s.open.Store(true)
	s.log.V(logDebug).Info("Stage started", "options", o.String())
	return s
}

// spawn starts fn in a new goroutine joined by wait.
func (s *stage) spawn(task string, fn func(ctx context.Context) error) {
	if !s.open.Load() {
		panic("chanflow: spawn called after stage shutdown")
	}
	s.wg.Add(1)
	s.spawned.Add(1)

	go func() {
		defer s.wg.Done()
		s.active.Add(1)
		defer s.active.Add(-1)

		if err := s.exec(fn); err != nil {
			s.recordError(task, err)
		}
	}()
}

// exec runs fn with the stage context and panic recovery.
func (s *stage) exec(fn func(ctx context.Context) error) error {
	return catch(func() error { return fn(s.ctx) })
}

func (s *stage) recordError(task string, err error) {
	var uf *upstreamFault
	upstream := errors.As(err, &uf)
	if upstream {
		err = uf.err
	}
	if IsCancellation(err) && s.ctx.Err() != nil {
		// The stage is already shutting down; this task only noticed.
		s.cancelled.Store(true)
		return
	}
	s.errOnce.Do(func() {
		if !upstream && !IsCancellation(err) && !IsStageError(err) {
			err = &StageError{Stage: s.name, Task: task, Err: err}
		}
		s.firstErr = err
		s.cancel(err)
	})
}

// wait joins every task and returns the stage outcome. It is idempotent.
func (s *stage) wait() error {
	s.finOnce.Do(func() {
		s.open.Store(false)
		s.wg.Wait()

		s.finErr = s.firstErr
		if s.finErr == nil && s.cancelled.Load() {
			s.finErr = s.ctx.Err()
		}
		s.cancel(nil)
		s.report()
	})
	return s.finErr
}

// finish waits for the stage in the background and then completes outs
// with its outcome.
func (s *stage) finish(outs ...completer) {
	go func() {
		err := s.wait()
		for _, c := range outs {
			c.Complete(err)
		}
	}()
}

func (s *stage) report() {
	sink := s.opts.sink
	if sink == nil {
		sink = metrics.Default()
	}
	elapsed := time.Since(s.start)
	sink.IncrCounterWithLabels(MetricItemsIn, float32(s.itemsIn.Load()), s.labels)
	sink.IncrCounterWithLabels(MetricItemsOut, float32(s.itemsOut.Load()), s.labels)
	sink.AddSampleWithLabels(MetricStageDuration, float32(elapsed.Milliseconds()), s.labels)

	kv := []any{"itemsIn", s.itemsIn.Load(), "itemsOut", s.itemsOut.Load(), "tasks", s.spawned.Load(), "elapsed", elapsed}
	switch out := outcome(s.finErr); out {
	case "ok":
		s.log.V(logDebug).Info("Stage finished", kv...)
	case "cancelled":
		sink.IncrCounterWithLabels(MetricStageFaults, 1, append(slices.Clip(s.labels), LabelOutcome.M(out)))
		s.log.V(logDefault).Info("Stage cancelled", kv...)
	default:
		sink.IncrCounterWithLabels(MetricStageFaults, 1, append(slices.Clip(s.labels), LabelOutcome.M(out)))
		s.log.Error(s.finErr, "Stage faulted", kv...)
	}
}

// upstreamFault marks a fault read from an input. It is recorded as is,
// without attributing it to the reading stage.
type upstreamFault struct {
	err error
}

func (e *upstreamFault) Error() string { return e.err.Error() }

func (e *upstreamFault) Unwrap() error { return e.err }

func unwrapUpstream(err error) error {
	var uf *upstreamFault
	if errors.As(err, &uf) {
		return uf.err
	}
	return err
}

// read pulls one item from r. It returns false at the end of r; err is
// nil on a clean end and the upstream fault or the cancellation error
// otherwise.
func read[T any](ctx context.Context, s *stage, r Reader[T]) (T, bool, error) {
	v, err := r.Read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return v, false, nil
		case ctx.Err() != nil:
			return v, false, ctx.Err()
		}
		return v, false, &upstreamFault{err: err}
	}
	s.itemsIn.Add(1)
	return v, true, nil
}

// write pushes v into c.
func write[T any](ctx context.Context, s *stage, c Writer[T], v T) error {
	if err := c.Write(ctx, v); err != nil {
		return err
	}
	s.itemsOut.Add(1)
	return nil
}

func completers[T any](chans []*Channel[T]) []completer {
	out := make([]completer, len(chans))
	for i, c := range chans {
		out[i] = c
	}
	return out
}
