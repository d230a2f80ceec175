package chanflow

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-metrics"
)

// Options configures a combinator. It is a value type: every combinator
// builds its own copy at call time, so later changes to the options a
// caller holds never affect a running pipeline.
//
// The zero value is usable: automatic parallelism, unbounded capacity,
// round-robin balancing, no logging and the global metrics sink.
type Options struct {
	degree   int
	capacity int
	strategy Strategy

	logger       logr.Logger
	sink         metrics.MetricSink
	metricLabels []metrics.Label

	statsInterval time.Duration
	onStats       func(PoolStats)
}

// Option mutates an [Options] value under construction.
type Option func(*Options) error

// NewOptions resolves opts on top of the defaults.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		logger: logr.Discard(),
		sink:   metrics.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	return o, nil
}

// DegreeOfParallelism returns the configured worker count. A value <= 0
// resolves to [runtime.NumCPU] at the time of the call.
func (o Options) DegreeOfParallelism() int {
	if o.degree <= 0 {
		return runtime.NumCPU()
	}
	return o.degree
}

// Capacity returns the bound of channels created by combinators.
// Zero means unbounded.
func (o Options) Capacity() int { return o.capacity }

// Strategy returns the balancing strategy.
func (o Options) Strategy() Strategy { return o.strategy }

// Logger returns the configured logger.
func (o Options) Logger() logr.Logger { return o.logger }

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	o.metricLabels = slices.Clone(o.metricLabels)
	return o
}

func (o Options) String() string {
	return fmt.Sprintf("DegreeOfParallelism: %d, Capacity: %d, Strategy: %s",
		o.DegreeOfParallelism(), o.capacity, o.strategy)
}

// WithOptions starts from a copy of base. Options listed after it
// override base.
func WithOptions(base Options) Option {
	return func(o *Options) error {
		*o = base.Clone()
		if o.sink == nil {
			o.sink = metrics.Default()
		}
		return nil
	}
}

// WithDegreeOfParallelism sets how many sub-channels or workers a
// combinator creates. A value <= 0 means one per CPU.
func WithDegreeOfParallelism(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			n = 0
		}
		o.degree = n
		return nil
	}
}

// WithCapacity bounds every channel the combinator creates. Writers
// suspend while a bounded channel is full. A value <= 0 means unbounded.
func WithCapacity(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			n = 0
		}
		o.capacity = n
		return nil
	}
}

// WithStrategy selects how items are routed between sub-channels.
func WithStrategy(s Strategy) Option {
	return func(o *Options) error {
		if !s.valid() {
			return fmt.Errorf("unknown balancing strategy %d", int(s))
		}
		o.strategy = s
		return nil
	}
}

// WithLogger sets the logger used by combinator stages.
func WithLogger(l logr.Logger) Option {
	return func(o *Options) error {
		o.logger = l
		return nil
	}
}

// WithMetricSink chooses where stage metrics are emitted. A nil sink
// discards them.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(o *Options) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		o.sink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to every metric a stage emits.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(o *Options) error {
		o.metricLabels = slices.Clone(labels)
		return nil
	}
}

// WithPoolMetrics registers a callback that receives [PoolStats]
// snapshots from [ForAll] and [ForEach] every interval while the pool
// runs, and once more when it finishes.
func WithPoolMetrics(interval time.Duration, fn func(PoolStats)) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("pool metrics interval must be positive, got %s", interval)
		}
		if fn == nil {
			return fmt.Errorf("pool metrics callback is nil")
		}
		o.statsInterval = interval
		o.onStats = fn
		return nil
	}
}
