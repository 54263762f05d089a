package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "gdrive-go"
	configFileName = "config.toml"
)

// DefaultConfigDir holds config.toml and client_secret.json:
// $XDG_CONFIG_HOME/gdrive-go (default ~/.config/gdrive-go), or
// ~/Library/Application Support/gdrive-go on macOS.
func DefaultConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir holds the token and the history database:
// $XDG_DATA_HOME/gdrive-go (default ~/.local/share/gdrive-go). macOS uses
// the same directory as DefaultConfigDir.
func DefaultDataDir() string {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultConfigPath is used when neither GDRIVE_GO_CONFIG nor --config is set.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// appDir resolves the per-user application directory. An XDG variable wins
// on every platform except macOS; "" means the home directory is unknown.
func appDir(xdgEnv, homeRel string) string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		return filepath.Join(home, "Library", "Application Support", appName)
	}

	return xdgDir(xdgEnv, homeRel)
}

func xdgDir(xdgEnv, homeRel string) string {
	if base := os.Getenv(xdgEnv); base != "" {
		return filepath.Join(base, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, homeRel, appName)
}

// ExpandHome turns "~" and "~/..." into paths under the home directory.
// "~user" forms are left alone.
func ExpandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, rest)
}
