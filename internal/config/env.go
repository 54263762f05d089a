package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "GDRIVE_GO_CONFIG"
	EnvBackend     = "GDRIVE_GO_BACKEND"
	EnvDownloadDir = "GDRIVE_GO_DOWNLOAD_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath  string // GDRIVE_GO_CONFIG: override config file path
	Backend     string // GDRIVE_GO_BACKEND: backend name
	DownloadDir string // GDRIVE_GO_DOWNLOAD_DIR: download directory
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		Backend:     os.Getenv(EnvBackend),
		DownloadDir: os.Getenv(EnvDownloadDir),
	}
}
