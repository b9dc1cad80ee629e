// Package trace provides trace ID generation and context propagation so every
// log line and audit row produced while handling one chat message can be
// correlated.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

type traceKey struct{}

// GenerateID returns a new random trace ID of the form "t_<32 hex chars>".
func GenerateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

// WithTraceID returns a child context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger returns the default logger with trace_id attached when ctx carries
// one.
func Logger(ctx context.Context) *slog.Logger {
	if id := FromContext(ctx); id != "" {
		return slog.With("trace_id", id)
	}
	return slog.Default()
}
