package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestZapLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{verbosity: -3, want: zapcore.InfoLevel},
		{verbosity: DEFAULT, want: zapcore.InfoLevel},
		{verbosity: TRACE, want: zapcore.Level(-5)},
		{verbosity: 127, want: zapcore.Level(-127)},
		{verbosity: 128, want: zapcore.Level(-127)},
		{verbosity: 200, want: zapcore.Level(-127)},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, zapLevel(test.verbosity), "verbosity %d", test.verbosity)
	}
}

func TestNewLoggerLargeVerbosity(t *testing.T) {
	// 200 直接转 int8 会变成 56，连 Info 都被关掉
	logger, err := NewLogger(200, false)
	require.NoError(t, err)
	assert.True(t, logger.Enabled())
	assert.True(t, logger.V(TRACE).Enabled())
}

func TestNewLoggerDefaultHidesDebug(t *testing.T) {
	logger, err := NewLogger(DEFAULT, false)
	require.NoError(t, err)
	assert.True(t, logger.Enabled())
	assert.False(t, logger.V(DEBUG).Enabled())
}
