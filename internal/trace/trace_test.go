package trace

import (
	"bytes"
	"context"
	"testing"
)

func TestDisabledSpanIsNoop(t *testing.T) {
	if err := InitWithConfig(Config{Enabled: false}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	if _, _, ok := GetTraceFields(ctx); ok {
		t.Error("Expected no trace fields while tracing is disabled")
	}
}

func TestEnabledSpanCarriesIDs(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithConfig(Config{Enabled: true, Writer: &buf}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer func() {
		_ = Shutdown(context.Background())
		_ = InitWithConfig(Config{Enabled: false})
	}()

	ctx, span := StartSpan(context.Background(), "cycle")
	traceID, spanID, ok := GetTraceFields(ctx)
	span.End()
	if !ok {
		t.Fatal("Expected trace fields on a recorded span")
	}
	if len(traceID) != 32 || len(spanID) != 16 {
		t.Errorf("Expected 32/16 hex ids, got %q/%q", traceID, spanID)
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"Name":"cycle"`)) {
		t.Errorf("Expected exported span named cycle, got %s", buf.String())
	}
}
