package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func newBufferLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelDebug,
		Format:    FormatJSON,
		Writer:    &buf,
		Component: "test",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	return entry
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t)
	logger.Info("classified", "family", "shift", "key", "3")

	entry := decodeLine(t, buf)
	if entry["msg"] != "classified" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "test" {
		t.Errorf("unexpected component: %v", entry["component"])
	}
	// Cipher keys are not secrets.
	if entry["key"] != "3" {
		t.Errorf("cipher key should not be redacted, got %v", entry["key"])
	}
}

func TestRedaction(t *testing.T) {
	logger, buf := newBufferLogger(t)
	logger.Info("estimate", "password", "hunter2", "api_key", "sk-123")

	entry := decodeLine(t, buf)
	for _, k := range []string{"password", "api_key"} {
		if entry[k] != "[REDACTED]" {
			t.Errorf("%s not redacted: %v", k, entry[k])
		}
	}
}

func TestShouldRedact(t *testing.T) {
	for _, k := range []string{"password", "Teacher_API_Key", "Authorization", "bearer_token"} {
		if !shouldRedact(k) {
			t.Errorf("expected %q to be redacted", k)
		}
	}
	for _, k := range []string{"key", "family", "ciphertext", "confidence"} {
		if shouldRedact(k) {
			t.Errorf("did not expect %q to be redacted", k)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	logger, buf := newBufferLogger(t)
	id := NewRequestID()
	if len(id) != 36 {
		t.Fatalf("expected a UUID, got %q", id)
	}

	ctx := ContextWithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("expected %q, got %q", id, got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}

	logger.WithContext(ctx).Info("hello")
	if entry := decodeLine(t, buf); entry["request_id"] != id {
		t.Errorf("request_id missing: %v", entry)
	}
}

func TestWithComponent(t *testing.T) {
	logger, buf := newBufferLogger(t)
	logger.WithComponent("classifier").Warn("slow")
	if !strings.Contains(buf.String(), `"component":"classifier"`) {
		t.Errorf("component not set: %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t)
	child := logger.WithComponent("api")

	logger.SetLevel(LevelWarn)
	child.Info("hidden")
	child.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level change not shared with derived logger: %s", buf.String())
	}
	if child.Level() != LevelWarn {
		t.Errorf("expected warn, got %v", child.Level())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing to see")
	if err := l.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "cypherify.log")
	rotator, err := NewFileRotator(RotationPolicy{Path: logPath, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rotator.now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		if _, err := rotator.Write([]byte("line\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := rotator.Rotate(); err != nil {
			t.Fatalf("rotate: %v", err)
		}
		clock = clock.Add(time.Second)
	}

	backups, err := rotator.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups, got %d: %v", len(backups), backups)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("current log missing: %v", err)
	}
}

func TestFileRotatorCompress(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	rotator, err := NewFileRotator(RotationPolicy{Path: logPath, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	rotator.Write([]byte("payload\n"))
	if err := rotator.Rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	backups, _ := rotator.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".log.gz") {
		t.Errorf("expected one gzip backup, got %v", backups)
	}
}
