package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "balloonpipe"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BALLOONPIPE"
)

// Loader handles loading configuration from defaults, files, and
// environment variables, in that order of increasing precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader bound to the global
// viper instance, so flag bindings set up by cobra commands apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from files, environment variables, and
// defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation loads configuration without running Validate,
// useful for commands (like `version`) that never touch the pipeline.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFile loads configuration from a specific file path, bypassing
// the search-path lookup in addConfigPaths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// addConfigPaths registers the directories searched for
// balloonpipe.{yaml,yml,json,toml}, in priority order.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/balloonpipe")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "balloonpipe"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "balloonpipe"))
	}
}

// setupEnvironmentVariables binds BALLOONPIPE_-prefixed environment
// variables over nested keys, e.g. BALLOONPIPE_OCR_API_KEY ->
// ocr.api_key.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults seeds viper with DefaultConfig so unset keys resolve to
// spec.md's defaults rather than Go zero values.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("pipeline.max_pages", d.Pipeline.MaxPages)
	l.v.SetDefault("pipeline.pdf_dpi", d.Pipeline.PDFDPI)
	l.v.SetDefault("pipeline.page_concurrency", d.Pipeline.PageConcurrency)
	l.v.SetDefault("pipeline.default_grid_columns", d.Pipeline.DefaultGridColumns)
	l.v.SetDefault("pipeline.default_grid_rows", d.Pipeline.DefaultGridRows)

	l.v.SetDefault("ocr.endpoint", d.OCR.Endpoint)
	l.v.SetDefault("ocr.timeout_s", d.OCR.TimeoutS)

	l.v.SetDefault("vlm.endpoint", d.VLM.Endpoint)
	l.v.SetDefault("vlm.timeout_s", d.VLM.TimeoutS)

	l.v.SetDefault("grid.enabled", d.Grid.Enabled)
	l.v.SetDefault("grid.timeout_s", d.Grid.TimeoutS)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)

	l.v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	l.v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)
	l.v.SetDefault("rate_limit.requests_per_hour", d.RateLimit.RequestsPerHour)
}
