// Config loading for the schemalogd daemon.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/schemalog/internal/paths"
	"github.com/mesh-intelligence/schemalog/pkg/types"
)

const (
	configFileName = "schemalog"
	configFileType = "yaml"
	envPrefix      = "SCHEMALOG"
)

// loadConfig resolves the effective configuration: built-in defaults,
// overlaid by a yaml config file when present, overlaid by SCHEMALOG_*
// environment variables. A missing config file is not an error.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()

	v := viper.New()
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("admin_addr", cfg.AdminAddr)
	v.SetDefault("default_page_size", cfg.DefaultPageSize)
	v.SetDefault("max_page_size", cfg.MaxPageSize)
	v.SetDefault("event_buffer", cfg.EventBuffer)
	v.SetDefault("default_rate_per_second", cfg.DefaultRatePerSec)
	v.SetDefault("default_burst", cfg.DefaultBurst)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	dataDir, err := paths.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return cfg, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
