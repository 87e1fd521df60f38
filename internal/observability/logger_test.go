// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/ghostpay/internal/config"
)

// syncBuffer is a WriteSyncer over a bytes.Buffer that is safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, out)
		GetLogger().Info("This is a test message.")
		Sync()

		s := out.String()
		assert.Contains(t, s, "INFO")
		assert.Contains(t, s, "This is a test message.")
		assert.Contains(t, s, colorGreen)
		assert.Contains(t, s, "TestService.")
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("file sink", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		path := filepath.Join(t.TempDir(), "ghostpay.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: path, MaxSize: 1}, zapcore.AddSync(&syncBuffer{}))
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("initializes only once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, &syncBuffer{})
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, &syncBuffer{})
		assert.Same(t, first, GetLogger())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, out)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}

func TestCardField(t *testing.T) {
	f := Card("4598123456789012")
	assert.Equal(t, "card", f.Key)
	assert.Equal(t, "**** 9012", f.String)
}
