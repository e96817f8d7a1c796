package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		logger, err := New(zapcore.WarnLevel, json)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	}
}

func TestEncoderConfig(t *testing.T) {
	assert.Equal(t, "ts", encoderConfig(true).TimeKey)
	assert.NotNil(t, encoderConfig(false).EncodeTime)
}
