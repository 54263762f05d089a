package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file path: CLI > env > default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags. Derived
// paths are filled in and "~" is expanded, so the result is ready to use.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(ConfigPath(env, cli))
	if err != nil {
		return nil, err
	}

	if env.Backend != "" {
		cfg.Backend = env.Backend
	}

	if env.DownloadDir != "" {
		cfg.DownloadDir = env.DownloadDir
	}

	if cli.Backend != "" {
		cfg.Backend = cli.Backend
	}

	if cli.DownloadDir != nil {
		cfg.DownloadDir = *cli.DownloadDir
	}

	if cli.StrictPaths != nil {
		cfg.StrictPaths = *cli.StrictPaths
	}

	cfg.ExcludedExtensions = append(cfg.ExcludedExtensions, cli.Exclude...)

	fillDerivedPaths(cfg)

	if err := ValidateResolved(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// fillDerivedPaths defaults the state files into the data and config
// directories and expands "~" in every path setting.
func fillDerivedPaths(cfg *Config) {
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(DefaultDataDir(), historyDBFileName)
	}

	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(DefaultDataDir(), tokenFileName)
	}

	if cfg.ClientSecret == "" {
		cfg.ClientSecret = filepath.Join(DefaultConfigDir(), clientSecretFileName)
	}

	cfg.DownloadDir = ExpandHome(cfg.DownloadDir)
	cfg.HistoryDB = ExpandHome(cfg.HistoryDB)
	cfg.TokenFile = ExpandHome(cfg.TokenFile)
	cfg.ClientSecret = ExpandHome(cfg.ClientSecret)
	cfg.MimeTable = ExpandHome(cfg.MimeTable)
}
