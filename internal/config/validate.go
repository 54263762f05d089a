package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Validation range constants.
const (
	minWorkers        = 1
	maxWorkers        = 32
	maxHashRetries    = 10
	minPageSize       = 1
	maxPageSize       = 1000
	minRequestTimeout = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Backend == "" {
		errs = append(errs, errors.New("backend: must not be empty"))
	}

	errs = append(errs, validateFilter(&cfg.FilterConfig)...)
	errs = append(errs, validateTransfers(&cfg.TransfersConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks the fully resolved configuration, after env and
// CLI overrides and path expansion.
func ValidateResolved(cfg *Config) error {
	var errs []error

	if cfg.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir: must not be empty"))
	} else if !filepath.IsAbs(cfg.DownloadDir) {
		errs = append(errs, fmt.Errorf("download_dir: must be absolute after expansion, got %q", cfg.DownloadDir))
	}

	if cfg.Backend == "" {
		errs = append(errs, errors.New("backend: must not be empty"))
	}

	errs = append(errs, validateExtensions(cfg.ExcludedExtensions)...)

	return errors.Join(errs...)
}

func validateFilter(f *FilterConfig) []error {
	var errs []error

	if f.MimeDelimiter == "" {
		errs = append(errs, errors.New("mime_delimiter: must not be empty"))
	}

	errs = append(errs, validateExtensions(f.ExcludedExtensions)...)

	return errs
}

// validateExtensions requires ".ext" entries with no duplicates.
func validateExtensions(exts []string) []error {
	var errs []error

	seen := make(map[string]bool, len(exts))

	for _, ext := range exts {
		switch {
		case !strings.HasPrefix(ext, ".") || len(ext) < 2: //nolint:mnd // dot plus one character
			errs = append(errs, fmt.Errorf("excluded_extensions: %q must start with a dot and name an extension", ext))
		case strings.ContainsAny(ext, `/\`):
			errs = append(errs, fmt.Errorf("excluded_extensions: %q must not contain a path separator", ext))
		case seen[ext]:
			errs = append(errs, fmt.Errorf("excluded_extensions: duplicate %q", ext))
		}

		seen[ext] = true
	}

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	errs = append(errs, validateRange("parallel_uploads", t.ParallelUploads, minWorkers, maxWorkers)...)
	errs = append(errs, validateRange("parallel_downloads", t.ParallelDownloads, minWorkers, maxWorkers)...)
	errs = append(errs, validateRange("hash_retries", t.HashRetries, 0, maxHashRetries)...)

	if _, err := ParseBandwidth(t.BandwidthLimit); err != nil {
		errs = append(errs, fmt.Errorf("bandwidth_limit: %w", err))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if n.SearchRate < 0 {
		errs = append(errs, fmt.Errorf("search_rate: must be >= 0, got %g", n.SearchRate))
	}

	if n.SearchRate > 0 && n.SearchBurst < 1 {
		errs = append(errs, fmt.Errorf("search_burst: must be >= 1 when search_rate is set, got %d", n.SearchBurst))
	}

	errs = append(errs, validateRange("page_size", n.PageSize, minPageSize, maxPageSize)...)
	errs = append(errs, validateDurationMin("request_timeout", n.RequestTimeout, minRequestTimeout)...)

	return errs
}

func validateRange(field string, v, lo, hi int) []error {
	if v < lo || v > hi {
		return []error{fmt.Errorf("%s: must be between %d and %d, got %d", field, lo, hi, v)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// RequestTimeoutDuration returns request_timeout parsed. Validate has
// already rejected malformed values.
func (n NetworkConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.RequestTimeout)
	if err != nil {
		return 0
	}

	return d
}

// BandwidthBytes returns bandwidth_limit in bytes per second, 0 for
// unlimited.
func (t TransfersConfig) BandwidthBytes() int64 {
	n, err := ParseBandwidth(t.BandwidthLimit)
	if err != nil {
		return 0
	}

	return n
}
