package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"magnetpress/internal/config"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(config.LoggingConfig{}, false)
	require.NoError(t, err)
	defer log.Sync()
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewVerboseForcesDebug(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "error"}, true)
	require.NoError(t, err)
	defer log.Sync()
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewJSONWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.log")
	log, err := New(config.LoggingConfig{Format: "json", File: file}, false)
	require.NoError(t, err)
	log.Info("hello")
	log.Sync()
	assert.FileExists(t, file)
}

func TestNewRejectsBadValues(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"}, false)
	assert.Error(t, err)
}
