// Package grid implements the optional grid-detection collaborator
// named in spec.md §6: an externally discovered drawing border grid
// (column and row labels) that, when present, overrides the Page
// Assembler's default eight-column/four-row zone grid.
package grid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
)

// Detector discovers a drawing's actual border-grid labels. A nil
// Grid with a nil error means no grid was found and the core's
// default grid applies.
type Detector interface {
	DetectGrid(ctx context.Context, raster []byte) (*assembler.Grid, error)
}

// NoneDetector is the zero-configuration default: the core default
// grid always applies, matching spec.md's "absent collaborator"
// behavior.
type NoneDetector struct{}

// DetectGrid always reports no grid detected.
func (NoneDetector) DetectGrid(context.Context, []byte) (*assembler.Grid, error) {
	return nil, nil
}

// Config configures the HTTP-backed grid detector.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultConfig mirrors the VLM adapter's timeout, since grid
// detection is the VLM's sibling endpoint.
func DefaultConfig() Config {
	return Config{Timeout: 120 * time.Second}
}

// HTTPDetector calls a grid-detection HTTP endpoint, grounded in the
// originating vision_service's detect_grid/_parse_grid_response shape:
// linear-interpolated column/row edges reduced here to ordered label
// sequences, which is all the Page Assembler's Zone function needs.
type HTTPDetector struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPDetector constructs a grid detector bound to cfg.
func NewHTTPDetector(cfg Config) *HTTPDetector {
	return &HTTPDetector{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type detectGridRequest struct {
	Image string `json:"image"` // base64 PNG
}

type detectGridResponse struct {
	HasGrid     bool     `json:"has_grid"`
	Columns     []string `json:"columns"`
	Rows        []string `json:"rows"`
	ColumnCount int      `json:"column_count"`
	RowCount    int      `json:"row_count"`
}

// DetectGrid submits raster to the configured endpoint. A response
// with has_grid=false, a non-2xx status, or a malformed body all
// resolve to "no grid detected" rather than a hard failure: grid
// detection is an optional enrichment, not required for ballooning.
func (d *HTTPDetector) DetectGrid(ctx context.Context, raster []byte) (*assembler.Grid, error) {
	body, err := json.Marshal(detectGridRequest{Image: base64.StdEncoding.EncodeToString(raster)})
	if err != nil {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		slog.Debug("grid: detector unavailable, using default grid", "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var parsed detectGridResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil
	}
	if !parsed.HasGrid || len(parsed.Columns) == 0 || len(parsed.Rows) == 0 {
		return nil, nil
	}

	return &assembler.Grid{Columns: parsed.Columns, Rows: parsed.Rows}, nil
}
