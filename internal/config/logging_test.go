package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"nimbus-gateway/internal/config"
)

func TestBuildLogger(t *testing.T) {
	logger, err := config.Logging{Level: "debug", JSON: true}.BuildLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = config.Logging{Level: "warn", JSON: false}.BuildLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = config.Logging{Level: "loud", JSON: true}.BuildLogger()
	assert.Error(t, err)
}
