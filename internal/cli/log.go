// Package cli implements the wiz command-line interface: a thin cobra
// wrapper around the resolver core that discovers registries from the
// filesystem, resolves a list of package requests, and prints the resulting
// context.
//
// The resolver core itself (version, requirement, definition, materialize,
// registry, graph, resolve) never imports this package or cobra; it is
// deliberately kept usable as a library by anything that wants to build its
// own front end.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
