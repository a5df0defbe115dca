//nolint:lll
package config

// Config is the complete configuration for the balloonpipe service: the
// orchestrator's tunables (spec.md §6's configuration table), the
// OCR/VLM/grid collaborator endpoints, and the ambient server/logging
// settings every command (process, serve) shares.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	VLM      VLMConfig      `mapstructure:"vlm" yaml:"vlm" json:"vlm"`
	Grid     GridConfig     `mapstructure:"grid" yaml:"grid" json:"grid"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// PipelineConfig holds spec.md §6's enumerated orchestrator options.
type PipelineConfig struct {
	MaxPages        int `mapstructure:"max_pages" yaml:"max_pages" json:"max_pages"`
	PDFDPI          int `mapstructure:"pdf_dpi" yaml:"pdf_dpi" json:"pdf_dpi"`
	PageConcurrency int `mapstructure:"page_concurrency" yaml:"page_concurrency" json:"page_concurrency"`

	DefaultGridColumns []string `mapstructure:"default_grid_columns" yaml:"default_grid_columns" json:"default_grid_columns"`
	DefaultGridRows    []string `mapstructure:"default_grid_rows" yaml:"default_grid_rows" json:"default_grid_rows"`
}

// OCRConfig configures the OCR adapter (§4.B).
type OCRConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	TimeoutS int    `mapstructure:"timeout_s" yaml:"timeout_s" json:"timeout_s"`
}

// VLMConfig configures the VLM adapter (§4.C).
type VLMConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	TimeoutS int    `mapstructure:"timeout_s" yaml:"timeout_s" json:"timeout_s"`
}

// GridConfig configures the optional grid-detection collaborator (§6).
type GridConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	TimeoutS int    `mapstructure:"timeout_s" yaml:"timeout_s" json:"timeout_s"`
}

// ServerConfig holds the HTTP surface settings (§6's "exposed to
// collaborators" operations, plus ambient CORS/upload-cap concerns).
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin  string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// RateLimitConfig is carried as ambient HTTP-surface infrastructure,
// same as the teacher's own server does for its API.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}

// DefaultConfig returns spec.md §6's defaults: max_pages 20, pdf_dpi
// 200, page_concurrency 4, ocr_timeout_s/vlm_timeout_s 60/120, and the
// default H-A/4-1 grid.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			MaxPages:           20,
			PDFDPI:             200,
			PageConcurrency:    4,
			DefaultGridColumns: []string{"H", "G", "F", "E", "D", "C", "B", "A"},
			DefaultGridRows:    []string{"4", "3", "2", "1"},
		},
		OCR: OCRConfig{TimeoutS: 60},
		VLM: VLMConfig{TimeoutS: 120},
		Grid: GridConfig{
			Enabled:  false,
			TimeoutS: 120,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigin:  "*",
			MaxUploadMB: 25,
			TimeoutSec:  180,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
	}
}

// Validate checks invariants a hand-edited config file can violate
// before the server or CLI command ever reaches the pipeline builder.
func (c Config) Validate() error {
	if c.Pipeline.MaxPages <= 0 {
		return errInvalid("pipeline.max_pages must be positive")
	}
	if c.Pipeline.PDFDPI <= 0 {
		return errInvalid("pipeline.pdf_dpi must be positive")
	}
	if c.Pipeline.PageConcurrency <= 0 {
		return errInvalid("pipeline.page_concurrency must be positive")
	}
	if len(c.Pipeline.DefaultGridColumns) == 0 || len(c.Pipeline.DefaultGridRows) == 0 {
		return errInvalid("pipeline.default_grid_columns and default_grid_rows must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errInvalid("server.max_upload_mb must be positive")
	}
	return nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

func errInvalid(msg string) error { return validationError(msg) }
