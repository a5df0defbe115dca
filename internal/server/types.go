package server

import (
	"net/http"

	"github.com/MeKo-Tech/balloonpipe/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // in bytes
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ProcessResponse wraps an Assembly for POST /v1/process.
type ProcessResponse struct {
	Success bool           `json:"success"`
	Result  *ProcessPayload `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RecomputeZoneRequest is the body of POST /v1/dimensions/recompute-zone.
type RecomputeZoneRequest struct {
	BBox    BBoxPayload  `json:"bounding_box"`
	Grid    *GridPayload `json:"grid,omitempty"`
}

// RecomputeZoneResponse is the response of POST /v1/dimensions/recompute-zone.
type RecomputeZoneResponse struct {
	Success bool   `json:"success"`
	Zone    string `json:"zone,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ManualDimensionRequest is the body of POST /v1/dimensions/manual.
type ManualDimensionRequest struct {
	Value string      `json:"value"`
	BBox  BBoxPayload `json:"bounding_box"`
}

// ManualDimensionResponse is the response of POST /v1/dimensions/manual.
type ManualDimensionResponse struct {
	Success bool             `json:"success"`
	Result  *DimensionPayload `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// BBoxPayload is the wire shape for a normalized bounding box.
type BBoxPayload struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// GridPayload is the wire shape for a page's column/row labels.
type GridPayload struct {
	Columns []string `json:"columns"`
	Rows    []string `json:"rows"`
}

// DimensionPayload is the wire shape for a single fused dimension.
type DimensionPayload struct {
	ID         int         `json:"id"`
	Value      string      `json:"value"`
	BBox       BBoxPayload `json:"bounding_box"`
	Zone       *string     `json:"zone"`
	Confidence float64     `json:"confidence"`
}

// ProcessPayload mirrors model.Assembly for the HTTP response body.
type ProcessPayload struct {
	TotalPages    int               `json:"total_pages"`
	Pages         []PagePayload     `json:"pages"`
	AllDimensions []DimensionPayload `json:"all_dimensions"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// PagePayload mirrors model.PageResult for the HTTP response body.
type PagePayload struct {
	Page         int                `json:"page"`
	ImageBase64  string             `json:"image_base64_png"`
	WidthPx      int                `json:"width_px"`
	HeightPx     int                `json:"height_px"`
	GridDetected bool               `json:"grid_detected"`
	Dimensions   []DimensionPayload `json:"dimensions"`
}

// NewServer creates a new dimension-pipeline server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().
		WithMaxPages(config.PipelineConfig.Decode.MaxPages).
		WithPDFDPI(config.PipelineConfig.Decode.DPI).
		WithPageConcurrency(config.PipelineConfig.PageConcurrency).
		WithDefaultGrid(config.PipelineConfig.DefaultGrid).
		WithOCRConfig(config.PipelineConfig.OCR).
		WithVLMConfig(config.PipelineConfig.VLM).
		Build()
	if err != nil {
		return nil, err
	}

	var rateLimiter *RateLimiter
	if config.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}

	return &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		rateLimiter: rateLimiter,
	}, nil
}

// Close releases server resources. The pipeline itself holds no
// resources (it only wraps HTTP adapter clients), but Close is kept
// for symmetry with callers that defer it unconditionally.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/metrics", s.corsMiddleware(s.metricsHandler))
	mux.HandleFunc("/ws/process", s.corsMiddleware(s.processWebSocketHandler))
	mux.HandleFunc("/v1/process", s.corsMiddleware(s.rateLimitMiddleware(s.processHandler)))
	mux.HandleFunc("/v1/dimensions/recompute-zone", s.corsMiddleware(s.recomputeZoneHandler))
	mux.HandleFunc("/v1/dimensions/manual", s.corsMiddleware(s.manualDimensionHandler))
}
