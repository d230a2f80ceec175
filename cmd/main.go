package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/baxromumarov/chanflow"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/hashicorp/go-metrics"
)

var (
	Items     = flag.Int("items", 10_000, "number of items to push through the pipeline")
	Workers   = flag.Int("workers", 0, "degree of parallelism, 0 for one per CPU")
	Capacity  = flag.Int("capacity", 0, "bound of intermediate channels, 0 for unbounded")
	Strategy  = flag.String("strategy", "round-robin", "round-robin, least-loaded or random")
	Delay     = flag.Duration("delay", 0, "simulated work per item")
	Verbosity = flag.Int("v", 0, "log verbosity")
)

func parseStrategy(s string) (chanflow.Strategy, error) {
	for _, st := range []chanflow.Strategy{chanflow.RoundRobin, chanflow.LeastLoaded, chanflow.Random} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

func main() {
	flag.Parse()

	log := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: *Verbosity}).WithName("chanflow")

	strategy, err := parseStrategy(*Strategy)
	if err != nil {
		log.Error(err, "Invalid flags")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logr.NewContext(ctx, log)

	sink := metrics.NewInmemSink(time.Minute, time.Minute)
	base, err := chanflow.NewOptions(
		chanflow.WithDegreeOfParallelism(*Workers),
		chanflow.WithCapacity(*Capacity),
		chanflow.WithStrategy(strategy),
		chanflow.WithMetricSink(sink),
	)
	if err != nil {
		log.Error(err, "Invalid options")
		os.Exit(1)
	}
	log.Info("Starting pipeline", "items", *Items, "options", base.String())

	start := time.Now()
	total, err := run(ctx, base)
	if err != nil {
		log.Error(err, "Pipeline failed", "cancelled", chanflow.IsCancellation(err))
		os.Exit(2)
	}
	log.Info("Pipeline finished", "sum", total, "elapsed", time.Since(start))

	for _, interval := range sink.Data() {
		interval.RLock()
		for name, v := range interval.Counters {
			log.V(1).Info("Metric", "name", name, "value", v.Sum)
		}
		interval.RUnlock()
	}
}

// run squares 1..items on split lanes, merges the lanes back and sums the
// result with a worker pool.
func run(ctx context.Context, base chanflow.Options) (int64, error) {
	opts := chanflow.WithOptions(base)

	items := make([]int64, *Items)
	for i := range items {
		items[i] = int64(i + 1)
	}
	src, err := chanflow.FromSlice(ctx, items, opts)
	if err != nil {
		return 0, err
	}

	lanes, err := chanflow.Split(ctx, src, opts)
	if err != nil {
		return 0, err
	}
	squared := make([]chanflow.Reader[int64], len(lanes))
	for i, lane := range lanes {
		squared[i], err = chanflow.ForEach(ctx, lane, func(ctx context.Context, v int64) (int64, error) {
			if *Delay > 0 {
				select {
				case <-time.After(*Delay):
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}
			return v * v, nil
		}, opts, chanflow.WithDegreeOfParallelism(1))
		if err != nil {
			return 0, err
		}
	}

	merged, err := chanflow.Merge(ctx, squared, opts)
	if err != nil {
		return 0, err
	}

	var total atomic.Int64
	err = chanflow.ForAll(ctx, merged, func(ctx context.Context, v int64) error {
		total.Add(v)
		return nil
	}, opts)
	return total.Load(), err
}
