package config

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultBackend           = "gdrive"
	defaultDownloadDir       = "~/Downloads"
	defaultMimeDelimiter     = "#"
	defaultParallelUploads   = 4
	defaultParallelDownloads = 4
	defaultHashRetries       = 2
	defaultBandwidthLimit    = "0"
	defaultSearchRate        = 10.0
	defaultSearchBurst       = 10
	defaultPageSize          = 100
	defaultRequestTimeout    = "60s"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	historyDBFileName        = "history.db"
	tokenFileName            = "token.json"
	clientSecretFileName     = "client_secret.json"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		BackendConfig:   BackendConfig{Backend: defaultBackend},
		PathsConfig:     defaultPathsConfig(),
		FilterConfig:    FilterConfig{MimeDelimiter: defaultMimeDelimiter},
		TransfersConfig: defaultTransfersConfig(),
		NetworkConfig:   defaultNetworkConfig(),
		LoggingConfig:   LoggingConfig{LogLevel: defaultLogLevel, LogFormat: defaultLogFormat},
		AuthConfig:      AuthConfig{},
	}
}

func defaultPathsConfig() PathsConfig {
	return PathsConfig{
		DownloadDir: defaultDownloadDir,
		AnchorRoot:  true,
		History:     true,
	}
}

func defaultTransfersConfig() TransfersConfig {
	return TransfersConfig{
		ParallelUploads:   defaultParallelUploads,
		ParallelDownloads: defaultParallelDownloads,
		HashRetries:       defaultHashRetries,
		BandwidthLimit:    defaultBandwidthLimit,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		SearchRate:     defaultSearchRate,
		SearchBurst:    defaultSearchBurst,
		PageSize:       defaultPageSize,
		RequestTimeout: defaultRequestTimeout,
	}
}
