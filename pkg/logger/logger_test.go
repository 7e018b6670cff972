package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// useObserver swaps the package logger for an observed one until the test ends
func useObserver(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	original := defaultLogger
	t.Cleanup(func() { defaultLogger = original })

	core, recorded := observer.New(level)
	defaultLogger = zap.New(core)
	return recorded
}

func TestInfoLogging(t *testing.T) {
	recorded := useObserver(t, zapcore.InfoLevel)

	Info("tree built", "leaves", 42, "catalog", "covers")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.InfoLevel, logs[0].Level)
	assert.Equal(t, "tree built", logs[0].Message)
	assert.Len(t, logs[0].Context, 2)
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     zapcore.Level
		logFunc   func(string, ...interface{})
		shouldLog bool
	}{
		{"Debug with Info level", zapcore.InfoLevel, Debug, false},
		{"Info with Info level", zapcore.InfoLevel, Info, true},
		{"Warn with Info level", zapcore.InfoLevel, Warn, true},
		{"Error with Warn level", zapcore.WarnLevel, Error, true},
		{"Info with Warn level", zapcore.WarnLevel, Info, false},
		{"Debug with Debug level", zapcore.DebugLevel, Debug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded := useObserver(t, tt.level)
			tt.logFunc("message")
			assert.Equal(t, tt.shouldLog, recorded.Len() == 1)
		})
	}
}

func TestWithFields(t *testing.T) {
	recorded := useObserver(t, zapcore.InfoLevel)

	With("request_id", "abc").With("command", "search").Info("request handled")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "abc", fields["request_id"])
	assert.Equal(t, "search", fields["command"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestInitLoggerToFile(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	path := filepath.Join(t.TempDir(), "imgsearch.log")
	require.NoError(t, InitLogger(WarnLevel, path))

	Info("dropped")
	Warn("kept", "key", "value")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "dropped"))
	assert.True(t, strings.Contains(string(data), `"msg":"kept"`))
}

func TestInitLoggerBadPath(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	err := InitLogger(InfoLevel, filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
