// Package logging provides structured JSONL event logging for the service.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryModel        Category = "model"
	CategoryTool         Category = "tool"
	CategoryCollector    Category = "collector"
	CategoryStorage      Category = "storage"
	CategoryHTTP         Category = "http"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	EventType string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Logger writes structured events as JSON lines. Events always go to the
// primary writer; when a log directory is configured, they are additionally
// appended to service.jsonl, and errors to errors.jsonl.
type Logger struct {
	out         io.Writer
	serviceFile *os.File
	errorFile   *os.File
	mu          sync.Mutex
	minLevel    Level
}

// NewLogger creates a logger writing to stdout. If baseDir is non-empty, the
// file sinks are opened underneath it.
func NewLogger(baseDir string) (*Logger, error) {
	l := &Logger{out: os.Stdout, minLevel: LevelInfo}

	if baseDir == "" {
		return l, nil
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	serviceFile, err := os.OpenFile(
		filepath.Join(baseDir, "service.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open service log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644,
	)
	if err != nil {
		serviceFile.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	l.serviceFile = serviceFile
	l.errorFile = errorFile
	return l, nil
}

// NewTestLogger returns a logger that writes to the given writer only.
// Intended for tests.
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{out: w, minLevel: LevelDebug}
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Log writes an event to all configured destinations
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if !l.shouldLog(event.Level) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.out != nil {
		if _, err := l.out.Write(data); err != nil {
			return fmt.Errorf("failed to write log event: %w", err)
		}
	}

	if l.serviceFile != nil {
		if _, err := l.serviceFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to service log: %w", err)
		}
	}

	if event.Level == LevelError && l.errorFile != nil {
		if _, err := l.errorFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to error log: %w", err)
		}
	}

	return nil
}

// shouldLog checks if event should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.minLevel]
}

// Close closes the file sinks, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.serviceFile != nil {
		if err := l.serviceFile.Close(); err != nil {
			firstErr = err
		}
		l.serviceFile = nil
	}
	if l.errorFile != nil {
		if err := l.errorFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.errorFile = nil
	}
	return firstErr
}

// Helper methods for common log patterns

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}
