package otel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	otelapi "go.opentelemetry.io/otel"
)

func TestInitialize_Stdout(t *testing.T) {
	prev := otelapi.GetTracerProvider()
	t.Cleanup(func() { otelapi.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Initialize(context.Background(), Config{ServiceName: "filerepo-test", Exporter: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, span := otelapi.Tracer("test").Start(context.Background(), "filerepo.count")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "filerepo.count") || !strings.Contains(out, "filerepo-test") {
		t.Fatalf("exported spans missing name or service:\n%s", out)
	}
}

func TestInitialize_UnknownExporter(t *testing.T) {
	if _, err := Initialize(context.Background(), Config{Exporter: "jaeger"}); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
