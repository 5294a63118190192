package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	logger, err := New(Config{Level: "warn", Encoding: "json", OutputPaths: []string{"stderr"}}, false)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	verbose, err := New(Config{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Config{Level: "loud"}, false)
	assert.Error(t, err)

	_, err = New(Config{Encoding: "xml"}, false)
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.log")
	logger, err := New(Config{Level: "info", Encoding: "console", OutputPaths: []string{path}}, false)
	require.NoError(t, err)

	logger.Info("hello from the grid")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the grid")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
