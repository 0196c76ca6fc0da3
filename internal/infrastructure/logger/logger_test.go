package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Debug("Debug message", map[string]interface{}{
		"key1": "value1",
	})

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)

	assert.NoError(t, err)
	assert.Equal(t, "DEBUG", logEntry["level"])
	assert.Equal(t, "Debug message", logEntry["message"])
	assert.Equal(t, "value1", logEntry["key1"])
	assert.Contains(t, logEntry, "timestamp")
	assert.Contains(t, logEntry["file"], "logger_test.go")
	assert.Contains(t, logEntry, "line")

	// Levels below the threshold are dropped
	buf.Reset()
	warnLogger := NewJSONLogger(&buf, WarnLevel)
	warnLogger.Debug("Should not appear", nil)
	warnLogger.Info("Should not appear either", nil)
	assert.Equal(t, "", buf.String())

	warnLogger.Warn("Warning message", nil)
	assert.Contains(t, buf.String(), "Warning message")

	buf.Reset()
	warnLogger.Error("Error message", nil)
	assert.Contains(t, buf.String(), "Error message")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	fieldLogger := logger.WithField("component", "confirmation")
	fieldLogger.Info("With field", nil)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "confirmation", logEntry["component"])
	assert.Equal(t, "With field", logEntry["message"])

	buf.Reset()
	fieldsLogger := fieldLogger.WithFields(map[string]interface{}{
		"transaction_id": "TXN-1-abcdef12",
		"component":      "override",
	})
	fieldsLogger.Info("With fields", map[string]interface{}{"attempt": 1})

	logEntry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "override", logEntry["component"])
	assert.Equal(t, "TXN-1-abcdef12", logEntry["transaction_id"])
	assert.Equal(t, float64(1), logEntry["attempt"])

	// The parent logger is not affected by its children
	buf.Reset()
	logger.Info("Parent", nil)
	assert.NotContains(t, buf.String(), "component")

	// Reserved keys cannot be overwritten by fields
	buf.Reset()
	logger.Info("Reserved", map[string]interface{}{"level": "nope"})
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", DebugLevel, false},
		{" INFO ", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"Error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestConcurrentWritesProduceWholeLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.WithField("worker", n).Info("tick", nil)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		var entry map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(line), &entry))
	}
}

func TestDefaultLogger(t *testing.T) {
	original := GetDefaultLogger()
	assert.NotNil(t, original)

	var buf bytes.Buffer
	SetDefaultLogger(NewJSONLogger(&buf, DebugLevel))
	defer SetDefaultLogger(original)

	OrDefault(nil).Info("via default", nil)
	assert.Contains(t, buf.String(), "via default")

	SetDefaultLogger(nil)
	assert.NotNil(t, GetDefaultLogger())
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.False(t, logger.Enabled(ErrorLevel))
	logger.Error("discarded", nil)
}
