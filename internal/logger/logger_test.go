package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	// Debug should not be logged at Info level
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message should not be logged at Info level")
	}

	buf.Reset()
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("Info message should be logged at Info level")
	}

	buf.Reset()
	logger.Warn("warn message")
	if buf.Len() == 0 {
		t.Error("Warn message should be logged at Info level")
	}

	buf.Reset()
	logger.Error("error message")
	if buf.Len() == 0 {
		t.Error("Error message should be logged at Info level")
	}
}

func TestComponentLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, "json", &buf)
	logger.SetComponentLevel("test-component", DebugLevel)

	compLogger := logger.WithComponent("test-component")

	// Debug should be logged for component even though global level is Warn
	compLogger.Debug("debug message")
	if buf.Len() == 0 {
		t.Error("Debug message should be logged for component with Debug level")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	logger.Info("test message", Fields{
		"key1": "value1",
		"key2": 42,
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if entry.Message != "test message" {
		t.Errorf("Expected message 'test message', got '%s'", entry.Message)
	}
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Fields["key1"] != "value1" {
		t.Errorf("Expected field key1=value1, got %v", entry.Fields["key1"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "text", &buf)

	logger.Info("test message", Fields{
		"key1": "value1",
	})

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("Text output should contain log level")
	}
	if !strings.Contains(output, "test message") {
		t.Error("Text output should contain message")
	}
	if !strings.Contains(output, "key1=value1") {
		t.Error("Text output should contain fields")
	}
	if !strings.Contains(output, "[cid=- rid=- idk=-]") {
		t.Errorf("Text output should mark missing identifiers, got %q", output)
	}
}

func TestSanitization(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	err := logger.SetSanitizePatterns([]string{
		"(?i)password",
		"(?i)token",
		"(?i)secret",
	})
	if err != nil {
		t.Fatalf("Failed to set sanitize patterns: %v", err)
	}

	logger.Info("sensitive data", Fields{
		"password": "mySecretPassword123",
		"token":    "Bearer abc123def456",
		"username": "john",
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if !strings.HasPrefix(entry.Fields["password"].(string), "***") {
		t.Error("Password field should be sanitized")
	}
	if !strings.HasPrefix(entry.Fields["token"].(string), "***") {
		t.Error("Token field should be sanitized")
	}
	if entry.Fields["username"] != "john" {
		t.Error("Username field should not be sanitized")
	}
}

func TestContextLoggerReadsScope(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	ctx, scope := reqctx.WithScope(context.Background())
	scope.Set(reqctx.CorrelationID, "corr-123")
	scope.Set(reqctx.RequestID, "req-456")

	ctxLogger := logger.WithComponent("test").WithContext(ctx)
	ctxLogger.Info("test message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if entry.CorrelationID.Value != "corr-123" {
		t.Errorf("Expected correlation ID corr-123, got %s", entry.CorrelationID)
	}
	if entry.RequestID.Value != "req-456" {
		t.Errorf("Expected request ID req-456, got %s", entry.RequestID)
	}
	if entry.Component != "test" {
		t.Errorf("Expected component test, got %s", entry.Component)
	}

	// Values set after the logger was created are still picked up
	buf.Reset()
	scope.Set(reqctx.IdempotencyKey, "idem-789")
	ctxLogger.Info("second message")

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if raw["idempotency_key"] != "idem-789" {
		t.Errorf("Expected idempotency key idem-789, got %v", raw["idempotency_key"])
	}
}

func TestMissingIdentifiersAreNull(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	logger.WithComponent("test").WithContext(context.Background()).Info("outside request")

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	for _, key := range []string{"correlation_id", "request_id", "idempotency_key"} {
		v, ok := raw[key]
		if !ok {
			t.Errorf("Expected %s to be present", key)
			continue
		}
		if v != nil {
			t.Errorf("Expected %s to be null, got %v", key, v)
		}
	}
}

func TestEmptyIdentifierIsNotMissing(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)

	ctx, scope := reqctx.WithScope(context.Background())
	scope.Set(reqctx.CorrelationID, "")

	logger.WithComponent("test").WithContext(ctx).Info("empty value")

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if raw["correlation_id"] != "" {
		t.Errorf("Expected empty string correlation_id, got %v", raw["correlation_id"])
	}
	if raw["request_id"] != nil {
		t.Errorf("Expected null request_id, got %v", raw["request_id"])
	}
}

func TestEnrichmentTruncation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, "json", &buf)
	logger.SetEnrichment(Enrichment{
		CorrelationIDLength: 8,
		RequestIDLength:     4,
	})

	ctx, scope := reqctx.WithScope(context.Background())
	scope.Set(reqctx.CorrelationID, "cjld2cjxh0000qzrmn831i7rn")
	scope.Set(reqctx.RequestID, "ckabcdefgh0000qzrmn831i7r")
	scope.Set(reqctx.IdempotencyKey, "idem")

	logger.WithComponent("test").WithContext(ctx).Info("truncated")

	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if raw["correlation_id"] != "cjld2cjx" {
		t.Errorf("Expected truncated correlation_id, got %v", raw["correlation_id"])
	}
	if raw["request_id"] != "ckab" {
		t.Errorf("Expected truncated request_id, got %v", raw["request_id"])
	}
	if _, ok := raw["idempotency_key"]; ok {
		t.Error("idempotency_key should be omitted when not included")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	Init(InfoLevel, "json", &buf)

	ctx, _ := reqctx.WithScope(context.Background())
	reqctx.Set(ctx, reqctx.CorrelationID, "ctx-123")
	ctxLogger := FromContext(ctx, "test-component")

	ctxLogger.Info("test message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if entry.CorrelationID.Value != "ctx-123" {
		t.Errorf("Expected correlation ID ctx-123, got %s", entry.CorrelationID)
	}
	if entry.Component != "test-component" {
		t.Errorf("Expected component test-component, got %s", entry.Component)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", DebugLevel, false},
		{"DEBUG", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"invalid", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("ParseLevel(%s) = %v, want %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestMergeFields(t *testing.T) {
	f1 := Fields{"a": 1, "b": 2}
	f2 := Fields{"c": 3, "d": 4}
	f3 := Fields{"b": 5} // Should override b from f1

	result := mergeFields(f1, f2, f3)

	if result["a"] != 1 {
		t.Error("Expected a=1")
	}
	if result["b"] != 5 {
		t.Error("Expected b=5 (overridden)")
	}
	if result["c"] != 3 {
		t.Error("Expected c=3")
	}
	if result["d"] != 4 {
		t.Error("Expected d=4")
	}
}
