// Package logger provides the structured JSON logger used across the service
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of a log message
type Level string

const (
	// DebugLevel is used for development messages
	DebugLevel Level = "DEBUG"
	// InfoLevel is used for general operational information
	InfoLevel Level = "INFO"
	// WarnLevel is used for warnings and potential issues
	WarnLevel Level = "WARN"
	// ErrorLevel is used for errors and unexpected events
	ErrorLevel Level = "ERROR"
	// FatalLevel is used for critical errors that require termination
	FatalLevel Level = "FATAL"
)

var severity = map[Level]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
	FatalLevel: 4,
}

// ParseLevel converts a configured level name such as "info" or "WARN" into a Level
func ParseLevel(name string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(name)))
	if level == "WARNING" {
		level = WarnLevel
	}
	if _, ok := severity[level]; !ok {
		return InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Logger defines the interface for the application logger
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// JSONLogger is a logger that outputs structured JSON logs, one object per line
type JSONLogger struct {
	output io.Writer
	mu     *sync.Mutex
	level  Level
	fields map[string]interface{}
}

// NewJSONLogger creates a new JSON logger
func NewJSONLogger(output io.Writer, level Level) *JSONLogger {
	if output == nil {
		output = os.Stdout
	}
	if _, ok := severity[level]; !ok {
		level = InfoLevel
	}

	return &JSONLogger{
		output: output,
		mu:     &sync.Mutex{},
		level:  level,
		fields: make(map[string]interface{}),
	}
}

// NewNopLogger returns a logger that drops everything, handy in tests
func NewNopLogger() *JSONLogger {
	return NewJSONLogger(io.Discard, FatalLevel)
}

// WithField returns a new logger with the field added to the log context
func (l *JSONLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with the fields added to the log context
func (l *JSONLogger) WithFields(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return l
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	// Children share the parent's writer lock so lines never interleave
	return &JSONLogger{
		output: l.output,
		mu:     l.mu,
		level:  l.level,
		fields: merged,
	}
}

// Debug logs a message at debug level
func (l *JSONLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(DebugLevel, msg, fields)
}

// Info logs a message at info level
func (l *JSONLogger) Info(msg string, fields map[string]interface{}) {
	l.log(InfoLevel, msg, fields)
}

// Warn logs a message at warn level
func (l *JSONLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(WarnLevel, msg, fields)
}

// Error logs a message at error level
func (l *JSONLogger) Error(msg string, fields map[string]interface{}) {
	l.log(ErrorLevel, msg, fields)
}

// Fatal logs a message at fatal level and then terminates the program
func (l *JSONLogger) Fatal(msg string, fields map[string]interface{}) {
	l.log(FatalLevel, msg, fields)
	os.Exit(1)
}

// Enabled reports whether messages at level would be written
func (l *JSONLogger) Enabled(level Level) bool {
	return severity[level] >= severity[l.level]
}

func (l *JSONLogger) log(level Level, msg string, fields map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	// Skip log and the exported level method
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "unknown"
		line = 0
	}

	record := make(map[string]interface{}, len(l.fields)+len(fields)+5)
	for k, v := range l.fields {
		record[k] = v
	}
	for k, v := range fields {
		record[k] = v
	}

	record["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	record["level"] = level
	record["message"] = msg
	record["file"] = file
	record["line"] = line

	jsonData, err := json.Marshal(record)
	if err != nil {
		jsonData = []byte(fmt.Sprintf(`{"level":"ERROR","message":"Failed to marshal log entry","error":%q}`, err.Error()))
	}
	jsonData = append(jsonData, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.output.Write(jsonData); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %s\n", err)
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewJSONLogger(os.Stdout, InfoLevel)
)

// GetDefaultLogger returns the process-wide fallback logger
func GetDefaultLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide fallback logger. Nil is ignored.
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// OrDefault returns log, or the default logger when log is nil
func OrDefault(log Logger) Logger {
	if log == nil {
		return GetDefaultLogger()
	}
	return log
}
