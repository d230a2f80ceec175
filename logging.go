package chanflow

import (
	"context"

	"github.com/go-logr/logr"
)

// Verbosity levels passed to logr's V.
const (
	logDefault = 2
	logVerbose = 3
	logDebug   = 4
	logTrace   = 5
)

// loggerFor returns the configured logger, falling back to the one carried
// by ctx.
func loggerFor(ctx context.Context, o Options) logr.Logger {
	if o.logger.GetSink() != nil {
		return o.logger
	}
	return logr.FromContextOrDiscard(ctx)
}
