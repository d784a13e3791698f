// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Run("writes through the configured service name", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		buf := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "portal-sentry"}, buf)

		logger := GetLogger()
		require.NotNil(t, logger)
		logger.Info("hello from the test")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, "hello from the test")
		assert.Contains(t, out, "portal-sentry")
	})

	t.Run("second initialize is a no-op", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		first := &syncBuffer{}
		second := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "two"}, second)

		GetLogger().Info("routed once")
		_ = GetLogger().Sync()

		assert.Contains(t, first.String(), "routed once")
		assert.Empty(t, second.String())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		buf := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "nonsense", Format: "json", ServiceName: "svc"}, buf)

		GetLogger().Debug("should be filtered")
		GetLogger().Info("should appear")
		_ = GetLogger().Sync()

		out := buf.String()
		assert.NotContains(t, out, "should be filtered")
		assert.Contains(t, out, "should appear")
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Before initialization there is still a usable logger.
	logger := GetLogger()
	assert.NotNil(t, logger)
}

func TestGetEncoder(t *testing.T) {
	t.Parallel()

	// Both formats produce a working encoder; the console one colorizes.
	for _, format := range []string{"console", "json"} {
		enc := getEncoder(config.LoggerConfig{Format: format})
		require.NotNil(t, enc)

		buf, err := enc.EncodeEntry(zapcore.Entry{
			Level:   zapcore.InfoLevel,
			Message: "probe",
		}, nil)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "probe")
	}
}
