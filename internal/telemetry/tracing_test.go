package telemetry

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "none"}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, nil); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
}

func TestSetupTracingStdoutWritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := SetupTracing(context.Background(), TraceConfig{
		ServiceName: "avatarframe-test",
		Exporter:    "stdout",
		Writer:      &buf,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("setup tracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "compose")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if !strings.Contains(buf.String(), "compose") {
		t.Fatalf("expected exported span in writer, got %q", buf.String())
	}
}
