package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFileLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "custardpie.log")

	logger, err := NewFileLogger(path, true)
	require.NoError(t, err)
	logger.Debug("fetching models", zap.String("url", "http://127.0.0.1:5000/models"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "fetching models"))
}

func TestNewFileLogger_InfoLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custardpie.log")

	logger, err := NewFileLogger(path, false)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}
