package tracing

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	assert.Equal(t, "sendlater", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.UseStdout)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	tm := NewTracingManager(TracingConfig{Enabled: false}, newQuietLogger())

	require.NoError(t, tm.Initialize(context.Background()))
	assert.Nil(t, tm.tracerProvider)

	// Shutdown without a provider must not fail.
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestInitializeStdoutExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.UseStdout = true

	tm := NewTracingManager(cfg, newQuietLogger())
	require.NoError(t, tm.Initialize(context.Background()))
	require.NotNil(t, tm.tracerProvider)

	require.NoError(t, tm.Shutdown(context.Background()))
}
