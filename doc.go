// Package chanflow provides concurrency combinators over asynchronous,
// backpressured channels.
//
// A [Channel] is a multi-producer multi-consumer FIFO queue with an
// optional bound. Producers [Channel.Write] and finally
// [Channel.Complete] it, optionally with a fault. Consumers
// [Channel.Read] until [io.EOF], or until the fault surfaces after the
// remaining items are drained. Combinators take and return the read end,
// [Reader], so pipelines compose:
//
//	src, _ := chanflow.FromSlice(ctx, orders)
//	parts, _ := chanflow.Split(ctx, src, chanflow.WithDegreeOfParallelism(4))
//	merged, _ := chanflow.Merge(ctx, parts)
//	err := chanflow.ForAll(ctx, merged, ship)
//
// # Combinators
//
// Fan-out:
//
//   - [Split]: partition items over N readers using a [Balancer].
//   - [Spread]: copy every item to N readers.
//   - [Fork]: one reader per predicate.
//
// Fan-in:
//
//   - [Merge], [Join], [Attach]: combine readers into one.
//   - [Detach]: tee the items matching a condition into a second reader.
//   - [DetachAttach]: send matching items through a sub-pipeline and merge
//     its output back.
//
// Worker pools:
//
//   - [ForAll]: run an action on every item with N workers.
//   - [ForEach]: map every item with N workers into a new reader.
//
// Grouping:
//
//   - [GroupBy]: one [Group] per distinct key, open until the input ends.
//   - [GroupByAdjacent]: one [Group] per run of equal adjacent keys.
//
// # Options
//
// Every combinator accepts [Option] values. They are resolved into a fresh
// [Options] value on every call:
//
//   - [WithDegreeOfParallelism]: sub-channel or worker count; one per CPU
//     when unset.
//   - [WithCapacity]: bound of the channels the combinator creates;
//     unbounded when unset.
//   - [WithStrategy]: [RoundRobin], [LeastLoaded] or [Random] routing.
//   - [WithLogger], [WithMetricSink], [WithMetricLabels] and
//     [WithPoolMetrics] for observability.
//
// # Errors and Cancellation
//
// Bad arguments are reported synchronously with errors wrapping
// [ErrInvalidArgument]; no goroutine is started in that case.
//
// Once running, each combinator owns its goroutines and joins them before
// completing its outputs. An error returned by a callback, or a panic
// ([*PanicError]), stops the combinator and completes its outputs with a
// [*StageError]. Faults read from an input are passed on unchanged.
//
// Cancelling the context passed to a combinator unblocks its goroutines
// and completes its outputs with the context error. Use [IsCancellation]
// to tell it apart from a fault.
package chanflow
