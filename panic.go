package chanflow

import (
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

// PanicError wraps a panic recovered from a user callback together with
// the goroutine stack trace captured at the point of the panic. It
// reaches consumers as the fault of the stage's outputs.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// catch runs fn and converts a panic into a *PanicError.
func catch(fn func() error) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = fn() })
	if r := pc.Recovered(); r != nil {
		return &PanicError{Value: r.Value, Stack: string(r.Stack)}
	}
	return err
}
