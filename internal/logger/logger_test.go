package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	Init()

	if InfoLogger == nil || ErrorLogger == nil || DebugLogger == nil {
		t.Fatal("Init did not set up all loggers")
	}
}

func TestInfoWithKeyValues(t *testing.T) {
	Init()

	var buf bytes.Buffer
	InfoLogger = log.New(&buf, "INFO: ", 0)

	Info("request handled", "status", 200, "path", "/reserve")

	out := buf.String()
	if !strings.Contains(out, "request handled") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "status=200") || !strings.Contains(out, "path=/reserve") {
		t.Errorf("expected key=value fields in output, got %q", out)
	}
}

func TestInfofFormats(t *testing.T) {
	Init()

	var buf bytes.Buffer
	InfoLogger = log.New(&buf, "INFO: ", 0)

	Infof("booked session %d for client %d", 7, 42)

	if !strings.Contains(buf.String(), "booked session 7 for client 42") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestErrorGoesToErrorLogger(t *testing.T) {
	Init()

	var buf bytes.Buffer
	ErrorLogger = log.New(&buf, "ERROR: ", 0)

	Error("debit failed", "plan_id", 3)

	out := buf.String()
	if !strings.Contains(out, "debit failed") || !strings.Contains(out, "plan_id=3") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestFormatKVOddArguments(t *testing.T) {
	got := formatKV("msg", []interface{}{"key", 1, "dangling"})
	if !strings.Contains(got, "key=1") || !strings.HasSuffix(got, "dangling") {
		t.Errorf("unexpected format: %q", got)
	}
}
