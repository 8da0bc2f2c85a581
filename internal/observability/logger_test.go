// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/lancet/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer for in-memory capture.
type syncBuffer struct {
	bytes.Buffer
}

func (s *syncBuffer) Sync() error { return nil }

func TestInitializeConsoleLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	cfg := config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "lancet-test",
		Colors:      config.ColorConfig{Info: "green"},
	}
	Initialize(cfg, zapcore.Lock(&buf))

	GetLogger().Info("console message")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "console message")
	assert.Contains(t, out, colorGreen)
	assert.Contains(t, out, colorReset)
	assert.Contains(t, out, "lancet-test.")
}

func TestInitializeJSONLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	cfg := config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "lancet-test",
	}
	Initialize(cfg, zapcore.Lock(&buf))

	GetLogger().Warn("structured message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "structured message", entry["msg"])
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "t"}, zapcore.Lock(&buf))

	GetLogger().Info("should be dropped")
	GetLogger().Warn("should be kept")

	out := buf.String()
	assert.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "should be kept")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "shouting", Format: "json", ServiceName: "t"}, zapcore.Lock(&buf))

	GetLogger().Debug("debug dropped")
	GetLogger().Info("info kept")

	out := buf.String()
	assert.NotContains(t, out, "debug dropped")
	assert.Contains(t, out, "info kept")
}

func TestFileCoreWritesJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "lancet.log")
	var buf syncBuffer
	cfg := config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "t",
		LogFile:     logFile,
		MaxSize:     1,
	}
	Initialize(cfg, zapcore.Lock(&buf))

	GetLogger().Info("file-bound entry")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "file-bound entry", entry["msg"])
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// Must be safe to use even though Initialize never ran.
	logger.Info("fallback logger works")
}
