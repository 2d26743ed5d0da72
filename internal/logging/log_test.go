package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New("system.log", Options{Dir: dir, NoConsole: true})
	require.NoError(t, err)
	log.Info("started", zap.String("location", "/js"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.Contains(t, string(data), `"location":"/js"`)
}

func TestNew_RespectsLevel(t *testing.T) {
	dir := t.TempDir()
	log, err := New("system.log", Options{Dir: dir, Level: zapcore.WarnLevel, NoConsole: true})
	require.NoError(t, err)
	log.Info("quiet")
	log.Warn("loud")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestNew_UnusableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := New("system.log", Options{Dir: filepath.Join(blocker, "logs"), NoConsole: true})
	assert.ErrorContains(t, err, "creating log dir")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}
