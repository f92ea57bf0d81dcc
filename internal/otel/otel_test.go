package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitInstallsProvider(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{AgentID: 2})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "startup")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span from the installed provider")
	}
}
