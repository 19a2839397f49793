package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTextfile(t *testing.T) {
	CycleCount.Set(3)
	MetricTotals.WithLabelValues("circular").Set(7)

	path := filepath.Join(t.TempDir(), "archratchet.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "archratchet_cycles 3") {
		t.Errorf("expected cycle gauge in output:\n%s", out)
	}
	if !strings.Contains(out, `archratchet_metric_total{metric="circular"} 7`) {
		t.Errorf("expected metric total in output:\n%s", out)
	}
}

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	_, span := Tracer.Start(context.Background(), "noop")
	span.End()
}
