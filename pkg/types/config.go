// Service configuration and its validation rules.
package types

import "errors"

// Config holds the parameters for a schemalog server instance. It is
// populated by the CLI from flags, a yaml config file, and SCHEMALOG_*
// environment variables.
type Config struct {
	// DataDir is where the SQLite database file lives. Created on demand.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// ListenAddr is the public, API-key-gated listener.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" mapstructure:"listen_addr"`

	// AdminAddr is the administrative listener serving API key management.
	// It is expected to be bound to a network-isolated interface.
	AdminAddr string `json:"admin_addr" yaml:"admin_addr" mapstructure:"admin_addr"`

	// DefaultPageSize applies when a log query omits limit; MaxPageSize
	// clamps whatever the caller asks for.
	DefaultPageSize int `json:"default_page_size" yaml:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `json:"max_page_size" yaml:"max_page_size" mapstructure:"max_page_size"`

	// EventBuffer is the per-subscriber event channel capacity. A slow
	// subscriber that falls this far behind starts losing oldest events.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer" mapstructure:"event_buffer"`

	// DefaultRatePerSec and DefaultBurst apply to API keys created without
	// an explicit rate-limit configuration.
	DefaultRatePerSec float64 `json:"default_rate_per_second" yaml:"default_rate_per_second" mapstructure:"default_rate_per_second"`
	DefaultBurst      int     `json:"default_burst" yaml:"default_burst" mapstructure:"default_burst"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Config validation errors.
var (
	ErrDataDirEmpty     = errors.New("data_dir must not be empty")
	ErrPageSizeInvalid  = errors.New("page sizes must be positive and default <= max")
	ErrEventBufInvalid  = errors.New("event_buffer must be positive")
	ErrRateLimitInvalid = errors.New("default rate limit must be positive")
)

// DefaultConfig returns the built-in configuration used when no file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		DataDir:           ".schemalog",
		ListenAddr:        ":8080",
		AdminAddr:         "127.0.0.1:8081",
		DefaultPageSize:   10,
		MaxPageSize:       100,
		EventBuffer:       64,
		DefaultRatePerSec: 10,
		DefaultBurst:      20,
		LogLevel:          "info",
	}
}

// Validate checks that the Config is well-formed, returning a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return ErrPageSizeInvalid
	}
	if c.EventBuffer <= 0 {
		return ErrEventBufInvalid
	}
	if c.DefaultRatePerSec <= 0 || c.DefaultBurst <= 0 {
		return ErrRateLimitInvalid
	}
	return nil
}
