package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerConfig(t *testing.T) {
	prod, err := newLoggerConfig("production", "")
	require.NoError(t, err)
	assert.Equal(t, "json", prod.Encoding)
	assert.Equal(t, zapcore.InfoLevel, prod.Level.Level())
	assert.Equal(t, "production", prod.InitialFields["env"])
	assert.Equal(t, serviceName, prod.InitialFields["service"])

	dev, err := newLoggerConfig("development", "warn")
	require.NoError(t, err)
	assert.Equal(t, "console", dev.Encoding)
	assert.Equal(t, zapcore.WarnLevel, dev.Level.Level())

	_, err = newLoggerConfig("development", "loud")
	assert.Error(t, err)
}
