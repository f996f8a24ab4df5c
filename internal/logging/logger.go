// Package logging defines the structured-logging interface used across the
// project, so components never depend on a concrete logging backend.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// key–value pairs:
//
//	log.Info(ctx, "upload started", "measurement_id", id)
type Logger interface {
	// Debug logs fine-grained protocol details.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal lifecycle events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions (stale responses, retries).
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value
	// pairs.
	With(args ...any) Logger
}
