// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/tripwire-cli/internal/config"
)

func initWithBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colors the level", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "tripwire",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("runner").Info("Run started.")

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "tripwire.runner.")
		assert.Contains(t, out, "Run started.")
	})

	t.Run("unknown color leaves the level plain", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "plaid"}})
		GetLogger().Warn("careful")
		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), "\x1b[")
	})

	t.Run("json logger", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filters debug", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "loud", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("writes a rotated file when configured", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tripwire.log")
		initWithBuffer(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})

	t.Run("only initializes once", func(t *testing.T) {
		buf := initWithBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "First"})
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})
}
