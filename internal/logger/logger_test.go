package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureJSON(t *testing.T, detailed bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := InitWithConfig(LogConfig{Level: "DEBUG", Format: "json", DetailedLogging: detailed, Output: &buf}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	t.Cleanup(func() {
		_ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"})
	})
	return &buf
}

func TestInfoWritesStructuredFields(t *testing.T) {
	buf := captureJSON(t, false)
	Info(context.Background(), "Client connected", "remote", "127.0.0.1:5000")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected a JSON log line, got %q", buf.String())
	}
	if rec["msg"] != "Client connected" {
		t.Errorf("Expected msg 'Client connected', got %v", rec["msg"])
	}
	if rec["remote"] != "127.0.0.1:5000" {
		t.Errorf("Expected remote field, got %v", rec["remote"])
	}
}

func TestDebugGatedByDetailedLogging(t *testing.T) {
	buf := captureJSON(t, false)
	Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug output to be suppressed, got %q", buf.String())
	}

	buf = captureJSON(t, true)
	Debug(context.Background(), "shown")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("Expected debug output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("Expected caller source in detailed mode, got %q", buf.String())
	}
}

func TestErrorWithErrIncludesError(t *testing.T) {
	buf := captureJSON(t, false)
	ErrorWithErr(context.Background(), "Snapshot failed", errors.New("boom"), "cycle", 3)
	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("Expected error field, got %q", out)
	}
	if !strings.Contains(out, `"cycle":3`) {
		t.Errorf("Expected cycle field, got %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "bogus": "INFO"}
	for in, want := range cases {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("Expected %s for %q, got %s", want, in, got)
		}
	}
}

func TestConsoleFormat(t *testing.T) {
	if err := InitWithConfig(LogConfig{Level: "INFO", Format: "console"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer func() { _ = InitWithConfig(LogConfig{Level: "INFO", Format: "text"}) }()
	if consoleLogger == nil {
		t.Fatal("Expected console backend to be installed")
	}
	Info(context.Background(), "console line", "k", "v")
	Sync()
}

func TestOperationTimerEnd(t *testing.T) {
	buf := captureJSON(t, true)
	op := StartOperation(context.Background(), "source.Start", "source", "MOCK")
	if op.GetContext() == nil {
		t.Fatal("Expected operation context")
	}
	op.End("rows", 3)

	out := buf.String()
	if !strings.Contains(out, `"msg":"Operation started"`) || !strings.Contains(out, `"operation":"source.Start"`) {
		t.Errorf("Expected start line with operation name, got %q", out)
	}
	if !strings.Contains(out, `"msg":"Operation completed"`) || !strings.Contains(out, `"duration_ms"`) {
		t.Errorf("Expected completion line with duration, got %q", out)
	}
	if !strings.Contains(out, `"rows":3`) || !strings.Contains(out, `"source":"MOCK"`) {
		t.Errorf("Expected operation fields on completion, got %q", out)
	}
}

func TestOperationTimerEndWithError(t *testing.T) {
	buf := captureJSON(t, false)
	op := StartOperation(context.Background(), "broadcaster.OnShutdown")
	op.EndWithError(errors.New("close failed"))

	out := buf.String()
	if strings.Contains(out, "Operation started") {
		t.Errorf("Expected start line to be debug only, got %q", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"msg":"Operation failed"`) {
		t.Errorf("Expected error line, got %q", out)
	}
	if !strings.Contains(out, `"error":"close failed"`) {
		t.Errorf("Expected error field, got %q", out)
	}
}

func TestWarnSkipLevel(t *testing.T) {
	buf := captureJSON(t, false)
	WarnSkip(context.Background(), 0, "Frame not delivered", "remote", "127.0.0.1:1")
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("Expected WARN line, got %q", buf.String())
	}
}
