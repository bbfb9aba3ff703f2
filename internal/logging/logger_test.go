package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tova-go/internal/config"
)

func TestBuildWritesPerLevelFiles(t *testing.T) {
	root := t.TempDir()
	var console bytes.Buffer

	log, err := build(root, config.LoggingConfig{Directory: "logs", Level: "info", Console: true}, &console)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("session completed")
	log.Warn("submission pending")
	require.NoError(t, log.Sync())

	entries, err := os.ReadDir(filepath.Join(root, "logs"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	// lumberjack creates files on first write
	require.Len(t, names, 2)
	assert.Regexp(t, `-info\.log$`, names[0])
	assert.Regexp(t, `-warn\.log$`, names[1])

	assert.Contains(t, console.String(), "session completed")
	assert.Contains(t, console.String(), "submission pending")
	assert.NotContains(t, console.String(), "hidden")
}

func TestBuildConsoleDisabled(t *testing.T) {
	var console bytes.Buffer
	log, err := build(t.TempDir(), config.LoggingConfig{Console: false}, &console)
	require.NoError(t, err)
	log.Info("quiet")
	assert.Empty(t, console.String())
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, err := build(t.TempDir(), config.LoggingConfig{Level: "chatty"}, nil)
	assert.Error(t, err)
}
