package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return newLogger(&buf, level), &buf
}

func decodeLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %q (%v)", line, err)
	}
	return m
}

// =====================================================
// Logger Tests
// =====================================================

// TestLogger_jsonFields verifies the structured field names and context.
func TestLogger_jsonFields(t *testing.T) {
	l, buf := captureLogger(LevelInfo)

	l.Info("archive saved", map[string]interface{}{"notebooks": 2})

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["message"] != "archive saved" {
		t.Errorf("message = %v", m["message"])
	}
	if m["level"] != "info" {
		t.Errorf("level = %v", m["level"])
	}
	if _, ok := m["timestamp"]; !ok {
		t.Error("missing timestamp field")
	}
	if m["notebooks"] != float64(2) {
		t.Errorf("notebooks = %v", m["notebooks"])
	}
}

// TestLogger_levelFiltering verifies messages below the minimum are dropped.
func TestLogger_levelFiltering(t *testing.T) {
	l, buf := captureLogger(LevelWarn)

	l.Debug("dropped")
	l.Info("also dropped")
	l.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), buf.String())
	}
	if m := decodeLine(t, lines[0]); m["message"] != "kept" {
		t.Errorf("message = %v, want kept", m["message"])
	}
}

// TestLogger_errorField verifies Error attaches the error value.
func TestLogger_errorField(t *testing.T) {
	l, buf := captureLogger(LevelError)

	l.Error("rotation failed", errors.New("no space"), map[string]interface{}{"tier": "daily"})

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["error"] != "no space" {
		t.Errorf("error = %v", m["error"])
	}
	if m["tier"] != "daily" {
		t.Errorf("tier = %v", m["tier"])
	}
}

// TestLogger_mergesContextMaps verifies later maps win on key collision.
func TestLogger_mergesContextMaps(t *testing.T) {
	l, buf := captureLogger(LevelInfo)

	l.Info("merged",
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"b": 2},
	)

	m := decodeLine(t, strings.TrimSpace(buf.String()))
	if m["a"] != float64(1) || m["b"] != float64(2) {
		t.Errorf("merged context = %v", m)
	}
}
