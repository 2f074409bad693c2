// internal/logger/logger_test.go
package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithNilConfig(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	log.Info("console only")
}

func TestLoggerHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, err := New(&Config{LogFile: path})
	require.NoError(t, err)

	log.WithComponent("venue").Info("adapter ready")
	log.LogError("gateway call failed", errors.New("connection refused"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `"component":"venue"`)
	assert.Contains(t, out, "adapter ready")
	assert.Contains(t, out, "gateway call failed")
	assert.Contains(t, out, "connection refused")
}
