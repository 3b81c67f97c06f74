package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/yourusername/pilotvoice-api/internal/config"
)

func TestNew_LevelFromConfig(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "warn"}, "release")
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel), "info не должен логироваться при уровне warn")
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_DebugModeOverridesLevel(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "error"}, "debug")
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_WritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	log, err := New(config.LoggerConfig{Level: "info", File: file, MaxSizeMB: 1}, "release")
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	assert.FileExists(t, file)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "loud"}, "release")
	assert.Error(t, err)
}
