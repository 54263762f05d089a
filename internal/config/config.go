// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gdrive-go. Values resolve through a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags. All keys are flat; the embedded section structs only group them.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	BackendConfig
	PathsConfig
	FilterConfig
	TransfersConfig
	NetworkConfig
	LoggingConfig
	AuthConfig
}

// BackendConfig selects the remote store provider.
type BackendConfig struct {
	Backend string `toml:"backend"`
}

// PathsConfig controls where downloads land and how remote paths resolve.
type PathsConfig struct {
	DownloadDir string `toml:"download_dir"`
	StrictPaths bool   `toml:"strict_paths"`
	AnchorRoot  bool   `toml:"anchor_root"`
	History     bool   `toml:"history"`
	HistoryDB   string `toml:"history_db"`
}

// FilterConfig holds the MIME table source and the extension exclusion list.
// Extensions include the leading dot.
type FilterConfig struct {
	MimeTable          string   `toml:"mime_table"`
	MimeDelimiter      string   `toml:"mime_delimiter"`
	ExcludedExtensions []string `toml:"excluded_extensions"`
}

// TransfersConfig controls parallel workers, checksum retries and the
// content bandwidth limit.
type TransfersConfig struct {
	ParallelUploads   int    `toml:"parallel_uploads"`
	ParallelDownloads int    `toml:"parallel_downloads"`
	HashRetries       int    `toml:"hash_retries"`
	BandwidthLimit    string `toml:"bandwidth_limit"`
}

// NetworkConfig controls the Drive client: search throttling, page size,
// request timeout and user agent.
type NetworkConfig struct {
	SearchRate     float64 `toml:"search_rate"`
	SearchBurst    int     `toml:"search_burst"`
	PageSize       int     `toml:"page_size"`
	RequestTimeout string  `toml:"request_timeout"`
	UserAgent      string  `toml:"user_agent"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// AuthConfig locates the OAuth client secret and the saved token.
type AuthConfig struct {
	ClientSecret string `toml:"client_secret"`
	TokenFile    string `toml:"token_file"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish
// "not specified" (nil) from an explicit zero value.
type CLIOverrides struct {
	ConfigPath  string   // --config flag (empty = use default)
	Backend     string   // --backend flag
	DownloadDir *string  // --download-dir flag
	StrictPaths *bool    // --strict flag
	Exclude     []string // --exclude flags, appended to the configured list
}
