package trace

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if !strings.HasPrefix(a, "t_") || len(a) != 34 {
		t.Errorf("unexpected trace ID format: %q", a)
	}
	if a == b {
		t.Errorf("expected distinct IDs, got %q twice", a)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := FromContext(ctx); got != "" {
		t.Errorf("FromContext(empty) = %q", got)
	}
	ctx = WithTraceID(ctx, "t_abc")
	if got := FromContext(ctx); got != "t_abc" {
		t.Errorf("FromContext = %q, want t_abc", got)
	}
	if Logger(ctx) == nil {
		t.Error("Logger returned nil")
	}
}
