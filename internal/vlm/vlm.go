// Package vlm wraps an external multimodal vision model that
// identifies dimension strings semantically, returning approximate
// normalized locations rather than tight bounding boxes.
package vlm

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

// Client identifies dimension strings in a raster image.
type Client interface {
	Identify(ctx context.Context, raster []byte) ([]model.VlmDimension, error)
}

// Config configures the HTTP-backed VLM client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultConfig returns the provider timeout mandated by the
// concurrency model (120s hard request timeout).
func DefaultConfig() Config {
	return Config{Timeout: 120 * time.Second}
}

// prompt binds the five rules the spec requires every VLM request to
// enforce: compound atoms, inline modifiers, mixed fractions,
// tolerance stacks, and one entry per spatial occurrence.
const prompt = `You are analyzing an engineering drawing. Identify every dimension callout and return it verbatim.

Rules:
1. Return compound atoms as single entries. Never split constructs like
   0.188" Wd. x 7/8" Lg. Key, 0.2500in -0.0015 -0.0030, or "Usable Length Range" phrases.
2. Preserve modifiers (2X, TYP, REF, C/C, BSC, THRU, DEEP, thread class suffixes) inline with their dimension.
3. Preserve mixed fractions as one atom, e.g. 3 1/4".
4. Preserve tolerance stacks on the same atom, e.g. 0.2500in -0.0015 -0.0030.
5. If the same value appears in more than one location, list it once per occurrence, each with its own location.

For every dimension return its text and an approximate center location as two percentages in [0,100].

Respond with JSON only, in this exact shape:
{"dimensions": [{"value": "...", "x_percent": 0, "y_percent": 0, "confidence": 0}]}`

// HTTPClient submits rasters to a generative multimodal HTTP endpoint.
// Like the OCR adapter, no third-party HTTP client exists in the
// reference corpus for this concern; net/http is used directly.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient constructs a VLM adapter bound to cfg.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	ResponseMIMEType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type dimensionsPayload struct {
	Dimensions []dimensionEntry `json:"dimensions"`
}

type dimensionEntry struct {
	Value      string  `json:"value"`
	XPercent   float64 `json:"x_percent"`
	YPercent   float64 `json:"y_percent"`
	Confidence float64 `json:"confidence"`
}

// Identify submits raster and returns the parsed dimension list. A
// successful empty list is a valid result — the drawing truly has no
// dimensions. Any response that is not valid JSON after code-fence
// unwrapping fails with model.ParseError; timeouts and non-2xx
// responses fail with model.VlmAPIError.
func (c *HTTPClient) Identify(ctx context.Context, raster []byte) ([]model.VlmDimension, error) {
	slog.Debug("vlm: submitting raster", "bytes", len(raster))

	body, err := c.buildRequest(raster)
	if err != nil {
		return nil, model.NewError(model.VlmAPIError, "failed to build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.NewError(model.VlmAPIError, "failed to build http request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.URL.RawQuery = "key=" + c.cfg.APIKey
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewError(model.VlmAPIError, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewError(model.VlmAPIError, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewError(model.VlmAPIError,
			fmt.Sprintf("non-2xx status %d", resp.StatusCode), nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, model.NewError(model.VlmAPIError, "failed to parse envelope", err)
	}

	text := extractText(parsed)
	payload, err := parseDimensionsJSON(text)
	if err != nil {
		return nil, model.NewError(model.ParseError, "vlm response was not valid JSON", err)
	}

	return toDimensions(payload), nil
}

func (c *HTTPClient) buildRequest(raster []byte) ([]byte, error) {
	req := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(raster)}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			MaxOutputTokens:  4096,
			ResponseMIMEType: "application/json",
		},
	}
	return json.Marshal(req)
}

func extractText(resp generateResponse) string {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return resp.Candidates[0].Content.Parts[0].Text
}

// parseDimensionsJSON unwraps an optional markdown code fence before
// parsing, mirroring the Python original's `_parse_dimension_response`.
func parseDimensionsJSON(text string) (dimensionsPayload, error) {
	text = unwrapCodeFence(text)
	var payload dimensionsPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return dimensionsPayload{}, err
	}
	return payload, nil
}

func unwrapCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func toDimensions(payload dimensionsPayload) []model.VlmDimension {
	out := make([]model.VlmDimension, 0, len(payload.Dimensions))
	for _, d := range payload.Dimensions {
		if strings.TrimSpace(d.Value) == "" {
			continue
		}
		out = append(out, model.VlmDimension{
			Value:      normalizeSymbols(d.Value),
			XPercent:   clampPercent(d.XPercent),
			YPercent:   clampPercent(d.YPercent),
			Confidence: d.Confidence,
		})
	}
	return out
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// normalizeSymbols canonicalizes dimension symbols in the verbatim
// value: "⌀" becomes "Ø" and "+/-" becomes "±". The multiplication sign
// between thread operands is left as written; neither "x" nor "×" is
// rewritten.
func normalizeSymbols(s string) string {
	s = strings.ReplaceAll(s, "⌀", "Ø")
	s = strings.ReplaceAll(s, "+/-", "±")
	return s
}
