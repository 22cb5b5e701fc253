package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/platinummonkey/adlbuilder/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeEntry(t, &buf)

		if entry["level"] != "info" {
			t.Errorf("Expected level info, got %v", entry["level"])
		}
		if entry["message"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["message"])
		}
		if _, ok := entry["time"]; !ok {
			t.Error("Expected time field")
		}
	})

	t.Run("warn logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if buf.Len() == 0 {
			t.Error("Warn message should be logged at Info level")
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		entry := decodeEntry(t, &buf)
		if entry["level"] != "error" {
			t.Errorf("Expected level error, got %v", entry["level"])
		}
	})
}

func TestLogger_ErrorLevelSuppressesWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	logger.Warn("quiet")
	logger.Infof("quiet %d", 1)
	if buf.Len() > 0 {
		t.Errorf("Expected nothing below error level, got %q", buf.String())
	}
	if logger.Level() != ErrorLevel {
		t.Errorf("Expected ErrorLevel, got %s", logger.Level())
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("component", "gate").WithFields(map[string]interface{}{
		"user_id": 7,
		"outcome": "revoked",
	}).Info("message")

	entry := decodeEntry(t, &buf)
	if entry["component"] != "gate" {
		t.Errorf("Expected component=gate, got %v", entry["component"])
	}
	if entry["user_id"] != float64(7) {
		t.Errorf("Expected user_id=7, got %v", entry["user_id"])
	}
	if entry["outcome"] != "revoked" {
		t.Errorf("Expected outcome=revoked, got %v", entry["outcome"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("ledger unavailable")).Error("something went wrong")

	entry := decodeEntry(t, &buf)
	if entry["error"] != "ledger unavailable" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	tests := []struct {
		name string
		log  func()
		want string
	}{
		{"Debugf", func() { logger.Debugf("debug %d", 1) }, "debug 1"},
		{"Infof", func() { logger.Infof("info %s", "x") }, "info x"},
		{"Warnf", func() { logger.Warnf("warn %v", true) }, "warn true"},
		{"Errorf", func() { logger.Errorf("error %d", 3) }, "error 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			entry := decodeEntry(t, &buf)
			if entry["message"] != tt.want {
				t.Errorf("Expected %q, got %v", tt.want, entry["message"])
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = contextkeys.WithUserID(ctx, 42)

	FromContext(ctx).Info("handled")

	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "req-123" {
		t.Errorf("Expected request_id, got %v", entry["request_id"])
	}
	if entry["user_id"] != float64(42) {
		t.Errorf("Expected user_id, got %v", entry["user_id"])
	}
}

func TestGetLogger_Default(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("Expected a default logger")
	}
}
