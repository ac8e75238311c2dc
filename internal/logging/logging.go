// Package logging configures the process-wide zerolog logger and the
// context helpers used to attach request-scoped fields to it.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Init builds the global logger from the LOG_LEVEL env var (default "info")
// and returns it. Output is JSON, suitable for ingestion by a log pipeline.
func Init() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithLogger attaches a logger to ctx so downstream calls can retrieve it
// with FromContext without threading it through every function signature.
func WithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached to ctx, or a disabled logger if
// none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}

// WithFields returns a child context whose logger carries the given
// request-scoped fields (project_id, request_id, ...).
func WithFields(ctx context.Context, fields map[string]string) context.Context {
	log := FromContext(ctx)
	lc := log.With()
	for k, v := range fields {
		lc = lc.Str(k, v)
	}
	return WithLogger(ctx, lc.Logger())
}
