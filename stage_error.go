package chanflow

import (
	"errors"
	"fmt"
)

// StageError attributes a fault to the combinator stage and task that
// raised it. Outputs of a faulted stage are completed with a StageError
// wrapping the callback error or [*PanicError].
type StageError struct {
	Stage string
	Task  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: task %q failed: %v", e.Stage, e.Task, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStageError reports whether err (or any error in its chain) is a [*StageError].
func IsStageError(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	return errors.As(err, &se)
}

// StageOf returns the stage and task names of the first [*StageError]
// in err's chain.
func StageOf(err error) (stage, task string, ok bool) {
	var se *StageError
	if err != nil && errors.As(err, &se) {
		return se.Stage, se.Task, true
	}
	return "", "", false
}

// CauseOf unwraps the first [*StageError] in err's chain and returns its
// underlying cause. If err is not a StageError, it is returned as-is.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var se *StageError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}

// AllStageErrors recursively collects every [*StageError] from err's chain,
// including errors wrapped via [errors.Join]. Returns nil if none are found.
//
// A single pipeline reports at most one StageError. AllStageErrors is for
// callers that run several pipelines and join their results.
func AllStageErrors(err error) []*StageError {
	if err == nil {
		return nil
	}

	var out []*StageError
	collectStageErrors(err, &out)
	return out
}

func collectStageErrors(err error, out *[]*StageError) {
	switch e := err.(type) {
	case *StageError:
		*out = append(*out, e)
		collectStageErrors(e.Err, out)

	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectStageErrors(sub, out)
		}

	case interface{ Unwrap() error }:
		collectStageErrors(e.Unwrap(), out)
	}
}
