// Package runid carries a correlation id through one orchestrator
// invocation (an ingestAll pass or a classify pass) so every log line it
// emits, across sequential sources or a bounded reasoning fan-out, can be
// grouped back together. Adapted from the teacher's
// internal/handler/http/requestid package: same context-key-carried-UUID
// shape, generalized from "one HTTP request" to "one orchestrator run"
// since this service has no inbound request path to tag beyond the
// trivial health routes.
package runid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const runIDKey contextKey = "run_id"

// New generates a fresh run id.
func New() string {
	return uuid.New().String()
}

// FromContext retrieves the run id from ctx, or "" if none was set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRunID attaches id to ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}
