package chanflow

import (
	"errors"

	"github.com/hashicorp/go-metrics"
)

var (
	// MetricItemsIn counts items a stage read from its inputs.
	MetricItemsIn = []string{"chanflow", "items", "in"}
	// MetricItemsOut counts items a stage wrote to its outputs. Fan-out
	// stages count one write per destination.
	MetricItemsOut = []string{"chanflow", "items", "out"}
	// MetricGroupsCreated counts groups opened by GroupBy and
	// GroupByAdjacent.
	MetricGroupsCreated = []string{"chanflow", "groups", "created"}
	// MetricStageFaults counts stages that ended with a fault, a panic or
	// a cancellation, labelled with [LabelOutcome].
	MetricStageFaults = []string{"chanflow", "stage", "faults"}
	// MetricStageDuration samples stage run time in milliseconds.
	MetricStageDuration = []string{"chanflow", "stage", "duration"}
	// MetricPoolProcessed counts items a worker pool finished.
	MetricPoolProcessed = []string{"chanflow", "pool", "processed"}
	// MetricPoolErrored counts items whose pool callback failed or panicked.
	MetricPoolErrored = []string{"chanflow", "pool", "errored"}
	// MetricPoolQueueLength gauges items waiting in worker queues. It is
	// set on every [WithPoolMetrics] tick.
	MetricPoolQueueLength = []string{"chanflow", "pool", "queue", "length"}
)

// TelemetryLabel is the name of a label attached to chanflow metrics.
type TelemetryLabel string

var (
	// LabelCombinator names the stage that emitted a metric, such as
	// "split" or "for-all".
	LabelCombinator TelemetryLabel = "combinator"
	// LabelOutcome is "fault", "panic" or "cancelled" on
	// [MetricStageFaults].
	LabelOutcome TelemetryLabel = "outcome"
)

// M builds a metrics label with this name and value val.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// outcome classifies a stage result for the faults counter.
func outcome(err error) string {
	var pe *PanicError
	switch {
	case err == nil:
		return "ok"
	case IsCancellation(err):
		return "cancelled"
	case errors.As(err, &pe):
		return "panic"
	default:
		return "fault"
	}
}
