package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, exitOK, exitCodeOf(nil))
	assert.Equal(t, exitConfigError, exitCodeOf(configErr(errors.New("bad config"))))
	assert.Equal(t, exitBrokerFailure, exitCodeOf(brokerErr(errors.New("not paper"))))
	assert.Equal(t, exitGeneralError, exitCodeOf(errors.New("plain failure")))
}

func TestWireEngine_EmptyTimezoneIsConfigError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("trading:\n  timezone: \"\"\n"), 0o600))

	_, err := wireEngine(cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeOf(err))
}

func TestWireEngine_InvalidTimezoneIsConfigError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "engine.yaml")
	content := "database:\n" +
		"  sqlite_path: " + filepath.Join(dir, "engine.db") + "\n" +
		"  artifact_dir: " + filepath.Join(dir, "artifacts") + "\n" +
		"trading:\n" +
		"  timezone: \"Not/AZone\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	_, err := wireEngine(cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeOf(err))
}
