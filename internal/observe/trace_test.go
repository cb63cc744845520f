package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return exp
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}
}

func TestStartSpan_ProducesValidTraceID(t *testing.T) {
	setupTracing(t)

	ctx, span := StartSpan(context.Background(), "test-span")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Errorf("trace ID = %q, want 32 hex chars", cid)
	}
}

func TestLogger_WithAndWithoutSpan(t *testing.T) {
	setupTracing(t)

	// Without a span the default logger comes back untouched.
	if l := Logger(context.Background()); l == nil {
		t.Fatal("Logger returned nil")
	}

	ctx, span := StartSpan(context.Background(), "log-span")
	defer span.End()

	if l := Logger(ctx); l == nil {
		t.Fatal("Logger with span returned nil")
	}
}
