package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()
	if logger == nil {
		t.Fatal("NewLogger() returned nil")
	}
	if logger.Logger == nil {
		t.Fatal("Logger.Logger is nil")
	}
}

func TestLogLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected slog.Level
	}{
		{"debug level", "DEBUG", slog.LevelDebug},
		{"info level", "INFO", slog.LevelInfo},
		{"warn level", "WARN", slog.LevelWarn},
		{"warning level", "WARNING", slog.LevelWarn},
		{"error level", "ERROR", slog.LevelError},
		{"lowercase debug", "debug", slog.LevelDebug},
		{"invalid level", "INVALID", slog.LevelInfo},
		{"empty value", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LevelEnvVar, tt.envValue)
			if level := getLogLevelFromEnv(); level != tt.expected {
				t.Errorf("getLogLevelFromEnv() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestSessionID(t *testing.T) {
	t.Run("generate session ID", func(t *testing.T) {
		id1 := GenerateSessionID()
		id2 := GenerateSessionID()

		if id1 == id2 {
			t.Error("GenerateSessionID() returned duplicate IDs")
		}
		if len(id1) != 16 {
			t.Errorf("GenerateSessionID() returned wrong length: %d", len(id1))
		}
	})

	t.Run("context with session ID", func(t *testing.T) {
		ctx := WithSessionID(context.Background(), "drive-42")
		if got := GetSessionID(ctx); got != "drive-42" {
			t.Errorf("GetSessionID() = %q, want %q", got, "drive-42")
		}
	})

	t.Run("context without session ID", func(t *testing.T) {
		if got := GetSessionID(context.Background()); got != "" {
			t.Errorf("GetSessionID() = %q, want empty string", got)
		}
	})

	t.Run("auto-generate session ID", func(t *testing.T) {
		ctx := WithSessionID(context.Background(), "")
		if got := GetSessionID(ctx); len(got) != 16 {
			t.Errorf("auto-generated session ID has wrong length: %d", len(got))
		}
	})
}

func TestSanitizeAttributes(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{"influx token", slog.String("influx_token", "abc"), "[REDACTED]"},
		{"password", slog.String("PASSWORD", "secret123"), "[REDACTED]"},
		{"authorization header", slog.String("authorization_header", "Bearer x"), "[REDACTED]"},
		{"rpm stays", slog.Float64("rpm", 800), "800"},
		{"gear stays", slog.String("gear", "D1"), "D1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeAttributes(nil, tt.attr)
			if result.Value.String() != tt.expected {
				t.Errorf("sanitizeAttributes() = %q, want %q", result.Value.String(), tt.expected)
			}
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log JSON: %v", err)
	}
	return entry
}

func TestLoggerMethods(t *testing.T) {
	t.Setenv(LevelEnvVar, "DEBUG")

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)
	ctx := WithSessionID(context.Background(), "session-1")

	t.Run("info logging", func(t *testing.T) {
		buf.Reset()
		logger.Info(ctx, "driver entered", "vehicle", "car")

		entry := decodeEntry(t, &buf)
		if entry["msg"] != "driver entered" {
			t.Errorf("Expected message 'driver entered', got %v", entry["msg"])
		}
		if entry["level"] != "INFO" {
			t.Errorf("Expected level 'INFO', got %v", entry["level"])
		}
		if entry["session_id"] != "session-1" {
			t.Errorf("Expected session_id 'session-1', got %v", entry["session_id"])
		}
	})

	t.Run("error logging", func(t *testing.T) {
		buf.Reset()
		logger.Error(ctx, "publish failed", errors.New("connection refused"))

		entry := decodeEntry(t, &buf)
		if entry["level"] != "ERROR" {
			t.Errorf("Expected level 'ERROR', got %v", entry["level"])
		}
		if entry["error"] != "connection refused" {
			t.Errorf("Expected error 'connection refused', got %v", entry["error"])
		}
	})

	t.Run("debug logging", func(t *testing.T) {
		buf.Reset()
		logger.Debug(ctx, "gear changed", "gear", 3)

		entry := decodeEntry(t, &buf)
		if entry["level"] != "DEBUG" {
			t.Errorf("Expected level 'DEBUG', got %v", entry["level"])
		}
	})

	t.Run("with attributes", func(t *testing.T) {
		buf.Reset()
		logger.With("vehicle", "truck").Warn(ctx, "slip")

		entry := decodeEntry(t, &buf)
		if entry["vehicle"] != "truck" {
			t.Errorf("Expected vehicle 'truck', got %v", entry["vehicle"])
		}
	})
}

func TestLogWithoutSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf)

	logger.Info(context.Background(), "test message")

	if strings.Contains(buf.String(), "session_id") {
		t.Error("Log should not contain session_id when none is set in context")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	original := errors.New("original error")
	wrapped := WrapError(original, "dial peer %s", "127.0.0.1:9000")

	if wrapped.Error() != "dial peer 127.0.0.1:9000: original error" {
		t.Errorf("WrapError() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, original) {
		t.Error("WrapError() should preserve original error")
	}
}
