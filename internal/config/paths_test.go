package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths_UnderAppDir(t *testing.T) {
	assert.Equal(t, appName, filepath.Base(DefaultConfigDir()))
	assert.Equal(t, appName, filepath.Base(DefaultDataDir()))
	assert.Equal(t, filepath.Join(DefaultConfigDir(), "config.toml"), DefaultConfigPath())
}

func TestDefaultPaths_XDG(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("macOS ignores XDG variables")
	}

	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	assert.Equal(t, "/custom/config/gdrive-go", DefaultConfigDir())
	assert.Equal(t, "/custom/data/gdrive-go", DefaultDataDir())
}

func TestXDGDir_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, filepath.Join(home, ".local", "share", appName), xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")))
}

func TestDefaultConfigDir_MacOS(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("macOS only")
	}

	assert.Contains(t, DefaultConfigDir(), "Library/Application Support")
	assert.Equal(t, DefaultConfigDir(), DefaultDataDir())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := map[string]string{
		"~":           home,
		"~/Downloads": filepath.Join(home, "Downloads"),
		"/abs/path":   "/abs/path",
		"relative":    "relative",
		"~user/x":     "~user/x",
		"":            "",
	}

	for in, want := range tests {
		assert.Equal(t, want, ExpandHome(in), in)
	}
}
