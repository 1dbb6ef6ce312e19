package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestContextHandlerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false, "orders")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With("component", "test").InfoContext(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Decode log line: %v", err)
	}
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() {
		t.Errorf("Missing trace ids: %v", entry)
	}
	if entry["service"] != "orders" || entry["component"] != "test" {
		t.Errorf("Missing logger attributes: %v", entry)
	}
}

func TestContextHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true, "orders")

	logger.DebugContext(context.Background(), "plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Decode log line: %v", err)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id should be absent without a span")
	}
}

func TestSetupTracerDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := SetupTracer(context.Background(), "orders", "test")
	if err != nil {
		t.Fatalf("SetupTracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	tests := map[string]string{
		"http://collector:4317":  "collector:4317",
		"https://collector:4317": "collector:4317",
		"collector:4317":         "collector:4317",
	}
	for in, want := range tests {
		if got := stripScheme(in); got != want {
			t.Errorf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
