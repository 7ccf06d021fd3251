package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)

	if err := l.Info(CategoryTool, "tool.exec.start", "executing", map[string]any{"tool": "get_max_cpu_usage"}); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := l.Error(CategoryModel, "model.request.failed", "boom", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var events []Event
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Category != CategoryTool || events[0].EventType != "tool.exec.start" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[0].Details["tool"] != "get_max_cpu_usage" {
		t.Errorf("expected tool detail, got %v", events[0].Details)
	}
	if events[1].Level != LevelError {
		t.Errorf("expected error level, got %s", events[1].Level)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)
	l.SetMinLevel(LevelWarn)

	if err := l.Info(CategoryHTTP, "http.request", "", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected info event below min level to be dropped, got %q", buf.String())
	}

	if err := l.Warn(CategoryHTTP, "http.slow", "", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected warn event to be written")
	}
}

func TestLoggerFileSinks(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.out = nil // keep test output clean

	if err := l.Info(CategoryStorage, "storage.open", "", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := l.Error(CategoryStorage, "storage.fail", "", nil); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	service, err := os.ReadFile(filepath.Join(dir, "service.jsonl"))
	if err != nil {
		t.Fatalf("reading service log: %v", err)
	}
	if bytes.Count(service, []byte("\n")) != 2 {
		t.Errorf("expected 2 lines in service log, got %q", service)
	}

	errors, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	if bytes.Count(errors, []byte("\n")) != 1 {
		t.Errorf("expected 1 line in error log, got %q", errors)
	}
}
