package chanflow

import (
	"context"
	"errors"
)

// ErrInvalidArgument is wrapped by every error a combinator returns
// synchronously because of a bad argument or option.
var ErrInvalidArgument = errors.New("chanflow: invalid argument")

// IsCancellation reports whether err is the outcome of a cancelled or
// expired context rather than a fault raised by an item.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
