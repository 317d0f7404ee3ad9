package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s", s)
	}
}

// Fields is a map of log fields
type Fields map[string]interface{}

// Logger represents a logger instance
type Logger struct {
	level            Level
	format           string // json or text
	output           io.Writer
	componentLevels  map[string]Level
	sanitizePatterns []*regexp.Regexp
	enrichment       Enrichment
	mu               sync.RWMutex
}

// Entry represents a single log entry
type Entry struct {
	Timestamp      string                 `json:"timestamp"`
	Level          string                 `json:"level"`
	Component      string                 `json:"component,omitempty"`
	CorrelationID  ID                     `json:"correlation_id"`
	RequestID      ID                     `json:"request_id"`
	IdempotencyKey *ID                    `json:"idempotency_key,omitempty"`
	TraceID        string                 `json:"trace_id,omitempty"`
	SpanID         string                 `json:"span_id,omitempty"`
	Message        string                 `json:"message"`
	Fields         map[string]interface{} `json:"fields,omitempty"`
}

var (
	globalLogger *Logger
	loggerMu     sync.RWMutex
)

// New creates a new logger instance
func New(level Level, format string, output io.Writer) *Logger {
	return &Logger{
		level:           level,
		format:          format,
		output:          output,
		componentLevels: make(map[string]Level),
		enrichment:      DefaultEnrichment(),
	}
}

// Init initializes the global logger
func Init(level Level, format string, output io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = New(level, format, output)
}

// Get returns the global logger. Before Init it returns a logger that
// discards everything so packages can log unconditionally.
func Get() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if globalLogger == nil {
		return discard
	}
	return globalLogger
}

var discard = New(FatalLevel+1, "json", io.Discard)

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetComponentLevel sets the log level for a specific component
func (l *Logger) SetComponentLevel(component string, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.componentLevels[component] = level
}

// SetEnrichment configures which request identifiers are attached to entries
func (l *Logger) SetEnrichment(e Enrichment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enrichment = e
}

// SetSanitizePatterns sets the regex patterns for field sanitization
func (l *Logger) SetSanitizePatterns(patterns []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sanitizePatterns = make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid sanitize pattern %s: %w", pattern, err)
		}
		l.sanitizePatterns = append(l.sanitizePatterns, re)
	}
	return nil
}

// shouldLog checks if a message should be logged based on level and component
func (l *Logger) shouldLog(level Level, component string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Check component-specific level first
	if componentLevel, ok := l.componentLevels[component]; ok {
		return level >= componentLevel
	}

	return level >= l.level
}

// sanitizeFields sanitizes sensitive fields
func (l *Logger) sanitizeFields(fields Fields) Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.sanitizePatterns) == 0 {
		return fields
	}

	sanitized := make(Fields)
	for k, v := range fields {
		shouldSanitize := false
		for _, pattern := range l.sanitizePatterns {
			if pattern.MatchString(k) {
				shouldSanitize = true
				break
			}
		}

		if shouldSanitize {
			if str, ok := v.(string); ok && len(str) > 4 {
				sanitized[k] = "***" + str[len(str)-4:]
			} else {
				sanitized[k] = "***"
			}
		} else {
			sanitized[k] = v
		}
	}

	return sanitized
}

// log writes a log entry. Request identifiers are read from ctx at this point,
// so every entry reflects the scope it was emitted in.
func (l *Logger) log(ctx context.Context, level Level, component, message string, fields Fields) {
	if !l.shouldLog(level, component) {
		return
	}

	l.mu.RLock()
	enrichment := l.enrichment
	l.mu.RUnlock()

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Component: component,
		Message:   message,
		Fields:    l.sanitizeFields(fields),
	}
	enrichment.apply(ctx, &entry)

	var output string
	if l.format == "json" {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
			return
		}
		output = string(data) + "\n"
	} else {
		output = l.formatText(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.output.Write([]byte(output))
}

// formatText formats a log entry as text
func (l *Logger) formatText(entry Entry) string {
	parts := []string{
		entry.Timestamp,
		entry.Level,
	}

	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Component))
	}

	ids := fmt.Sprintf("[cid=%s rid=%s", entry.CorrelationID, entry.RequestID)
	if entry.IdempotencyKey != nil {
		ids += fmt.Sprintf(" idk=%s", *entry.IdempotencyKey)
	}
	parts = append(parts, ids+"]")

	if entry.TraceID != "" {
		parts = append(parts, fmt.Sprintf("[trace=%s]", entry.TraceID))
	}

	parts = append(parts, entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldsStr := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldsStr = append(fieldsStr, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
		}
		parts = append(parts, strings.Join(fieldsStr, " "))
	}

	return strings.Join(parts, " ") + "\n"
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...Fields) {
	l.log(context.Background(), DebugLevel, "", message, mergeFields(fields...))
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...Fields) {
	l.log(context.Background(), InfoLevel, "", message, mergeFields(fields...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...Fields) {
	l.log(context.Background(), WarnLevel, "", message, mergeFields(fields...))
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...Fields) {
	l.log(context.Background(), ErrorLevel, "", message, mergeFields(fields...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields ...Fields) {
	l.log(context.Background(), FatalLevel, "", message, mergeFields(fields...))
	os.Exit(1)
}

// WithComponent creates a component logger
func (l *Logger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{
		logger:    l,
		component: component,
	}
}

// ComponentLogger is a logger for a specific component
type ComponentLogger struct {
	logger    *Logger
	component string
}

// Debug logs a debug message for the component
func (cl *ComponentLogger) Debug(message string, fields ...Fields) {
	cl.logger.log(context.Background(), DebugLevel, cl.component, message, mergeFields(fields...))
}

// Info logs an info message for the component
func (cl *ComponentLogger) Info(message string, fields ...Fields) {
	cl.logger.log(context.Background(), InfoLevel, cl.component, message, mergeFields(fields...))
}

// Warn logs a warning message for the component
func (cl *ComponentLogger) Warn(message string, fields ...Fields) {
	cl.logger.log(context.Background(), WarnLevel, cl.component, message, mergeFields(fields...))
}

// Error logs an error message for the component
func (cl *ComponentLogger) Error(message string, fields ...Fields) {
	cl.logger.log(context.Background(), ErrorLevel, cl.component, message, mergeFields(fields...))
}

// Fatal logs a fatal message for the component and exits
func (cl *ComponentLogger) Fatal(message string, fields ...Fields) {
	cl.logger.log(context.Background(), FatalLevel, cl.component, message, mergeFields(fields...))
	os.Exit(1)
}

// WithContext binds the component logger to a request context
func (cl *ComponentLogger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{
		logger:    cl.logger,
		component: cl.component,
		ctx:       ctx,
	}
}

// ContextLogger is a logger bound to a request context
type ContextLogger struct {
	logger    *Logger
	component string
	ctx       context.Context
}

// Debug logs a debug message with context
func (c *ContextLogger) Debug(message string, fields ...Fields) {
	c.logger.log(c.ctx, DebugLevel, c.component, message, mergeFields(fields...))
}

// Info logs an info message with context
func (c *ContextLogger) Info(message string, fields ...Fields) {
	c.logger.log(c.ctx, InfoLevel, c.component, message, mergeFields(fields...))
}

// Warn logs a warning message with context
func (c *ContextLogger) Warn(message string, fields ...Fields) {
	c.logger.log(c.ctx, WarnLevel, c.component, message, mergeFields(fields...))
}

// Error logs an error message with context
func (c *ContextLogger) Error(message string, fields ...Fields) {
	c.logger.log(c.ctx, ErrorLevel, c.component, message, mergeFields(fields...))
}

// Fatal logs a fatal message with context and exits
func (c *ContextLogger) Fatal(message string, fields ...Fields) {
	c.logger.log(c.ctx, FatalLevel, c.component, message, mergeFields(fields...))
	os.Exit(1)
}

// mergeFields merges multiple Fields maps
func mergeFields(fields ...Fields) Fields {
	if len(fields) == 0 {
		return Fields{}
	}
	if len(fields) == 1 {
		return fields[0]
	}

	result := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			result[k] = v
		}
	}
	return result
}

// FromContext creates a component logger bound to ctx
func FromContext(ctx context.Context, component string) *ContextLogger {
	return Get().WithComponent(component).WithContext(ctx)
}

// Global convenience functions
func Debug(message string, fields ...Fields) {
	Get().Debug(message, fields...)
}

func Info(message string, fields ...Fields) {
	Get().Info(message, fields...)
}

func Warn(message string, fields ...Fields) {
	Get().Warn(message, fields...)
}

func Error(message string, fields ...Fields) {
	Get().Error(message, fields...)
}

func Fatal(message string, fields ...Fields) {
	Get().Fatal(message, fields...)
}
