// Package ocr wraps an external word-level text-detection provider.
// The adapter is stateless across calls; every invocation submits one
// raster and returns spans renormalized to the page-local [0,1000]
// coordinate system.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
)

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DefaultConfidence is used when the provider omits a confidence score
// for a detected word.
const DefaultConfidence = 0.95

// Client detects word-level text spans in a raster image.
type Client interface {
	Detect(ctx context.Context, raster []byte, widthPx, heightPx int) ([]model.OcrSpan, error)
}

// Config configures the HTTP-backed OCR client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultConfig returns the provider timeout mandated by the
// concurrency model (60s hard request timeout).
func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}

// HTTPClient submits rasters to a text-detection HTTP endpoint. No
// general-purpose HTTP client library appears anywhere in the
// reference corpus for this concern (see DESIGN.md); net/http is used
// directly, mirroring the request/response shape of Google Cloud
// Vision's images:annotate endpoint.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient constructs an OCR adapter bound to cfg.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    annotateImage    `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"` // base64
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		TextAnnotations []textAnnotation `json:"textAnnotations"`
		Error           *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

type textAnnotation struct {
	Description string      `json:"description"`
	BoundingPoly boundingPoly `json:"boundingPoly"`
	Confidence  *float64    `json:"confidence"`
}

type boundingPoly struct {
	Vertices []struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"vertices"`
}

// Detect submits raster to the configured endpoint and returns
// word-level spans normalized to [0,1000]. Empty text is dropped.
// Timeouts and non-2xx responses fail with model.OcrAPIError.
func (c *HTTPClient) Detect(ctx context.Context, raster []byte, widthPx, heightPx int) ([]model.OcrSpan, error) {
	slog.Debug("ocr: submitting raster", "width_px", widthPx, "height_px", heightPx)

	body, err := c.buildRequest(raster)
	if err != nil {
		return nil, model.NewError(model.OcrAPIError, "failed to build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewError(model.OcrAPIError, "failed to build http request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.URL.RawQuery = "key=" + c.cfg.APIKey
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewError(model.OcrAPIError, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewError(model.OcrAPIError, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewError(model.OcrAPIError,
			fmt.Sprintf("non-2xx status %d", resp.StatusCode), nil)
	}

	var parsed annotateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, model.NewError(model.OcrAPIError, "failed to parse response", err)
	}

	return parseSpans(parsed, widthPx, heightPx), nil
}

func (c *HTTPClient) buildRequest(raster []byte) ([]byte, error) {
	req := annotateRequest{
		Requests: []annotateImageRequest{
			{
				Image:    annotateImage{Content: encodeBase64(raster)},
				Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			},
		},
	}
	return json.Marshal(req)
}

// parseSpans converts provider annotations (pixel polygons, index 0 is
// the full-page annotation and is skipped) into normalized spans.
func parseSpans(resp annotateResponse, widthPx, heightPx int) []model.OcrSpan {
	if len(resp.Responses) == 0 {
		return nil
	}
	annotations := resp.Responses[0].TextAnnotations
	spans := make([]model.OcrSpan, 0, len(annotations))
	for i, a := range annotations {
		if i == 0 {
			continue // full-page annotation, not a word span
		}
		text := strings.TrimSpace(a.Description)
		if text == "" {
			continue
		}
		bbox := pixelBoxToNormalized(a.BoundingPoly, widthPx, heightPx)
		if bbox.Degenerate() {
			continue
		}
		confidence := DefaultConfidence
		if a.Confidence != nil {
			confidence = *a.Confidence
		}
		spans = append(spans, model.OcrSpan{Text: text, BBox: bbox, Confidence: confidence})
	}
	return spans
}

func pixelBoxToNormalized(poly boundingPoly, widthPx, heightPx int) model.BBox {
	if len(poly.Vertices) == 0 || widthPx == 0 || heightPx == 0 {
		return model.BBox{}
	}
	minX, minY := poly.Vertices[0].X, poly.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	toNorm := func(p, dim int) int {
		return int((float64(p) / float64(dim)) * model.NormalizedCoord)
	}
	return model.BBox{
		XMin: toNorm(minX, widthPx),
		YMin: toNorm(minY, heightPx),
		XMax: toNorm(maxX, widthPx),
		YMax: toNorm(maxY, heightPx),
	}.Clamp()
}
