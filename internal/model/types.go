// Package model defines the record types shared by every stage of the
// dimension detection and fusion pipeline. Values are created once by
// the component that emits them and never mutated afterward.
package model

// NormalizedCoord is the shared [0, 1000] per-axis coordinate frame
// every component downstream of the decoder operates in, regardless of
// source DPI.
const NormalizedCoord = 1000

// BBox is an axis-aligned bounding box in the normalized [0,1000] frame.
type BBox struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// CenterX returns the horizontal center of the box.
func (b BBox) CenterX() int { return (b.XMin + b.XMax) / 2 }

// CenterY returns the vertical center of the box.
func (b BBox) CenterY() int { return (b.YMin + b.YMax) / 2 }

// Degenerate reports whether the box has zero width or height, per
// the invariant that such spans must be discarded before grouping.
func (b BBox) Degenerate() bool { return b.XMin == b.XMax || b.YMin == b.YMax }

// Union returns the coordinate-wise min/max union of two boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		XMin: minInt(b.XMin, o.XMin),
		YMin: minInt(b.YMin, o.YMin),
		XMax: maxInt(b.XMax, o.XMax),
		YMax: maxInt(b.YMax, o.YMax),
	}
}

// Clamp restricts every coordinate to [0, NormalizedCoord].
func (b BBox) Clamp() BBox {
	return BBox{
		XMin: clampInt(b.XMin, 0, NormalizedCoord),
		YMin: clampInt(b.YMin, 0, NormalizedCoord),
		XMax: clampInt(b.XMax, 0, NormalizedCoord),
		YMax: clampInt(b.YMax, 0, NormalizedCoord),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PageRaster is the immutable per-page record emitted by the decoder.
//
// spec.md §4.A also names an optional vector-text-layer extraction for
// PDFs with embedded text; this decoder does not populate it (see
// DESIGN.md) and every page behaves as the spec's own documented
// fallback: "if vector extraction fails per-page, the raster still
// succeeds and vector_text = none."
type PageRaster struct {
	Page     int    `json:"page"` // 1-based
	PNG      []byte `json:"-"`
	WidthPx  int    `json:"width_px"`
	HeightPx int    `json:"height_px"`
}

// OcrSpan is a single text detection returned by the OCR adapter, or a
// merged span produced by the token grouper.
type OcrSpan struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// VlmDimension is a semantically-identified dimension string returned
// by the VLM adapter, with an approximate, noisy center location.
type VlmDimension struct {
	Value      string  `json:"value"`
	XPercent   float64 `json:"x_percent"`
	YPercent   float64 `json:"y_percent"`
	Confidence float64 `json:"confidence"`
}

// Dimension is a single fused, ballooned measurement.
type Dimension struct {
	ID         int     `json:"id"`
	Page       int     `json:"page"`
	Value      string  `json:"value"`
	BBox       BBox    `json:"bounding_box"`
	Zone       *string `json:"zone"`
	Confidence float64 `json:"confidence"`
}

// PageResult is one page's raster plus its fused dimensions, as
// returned to callers.
type PageResult struct {
	Page          int         `json:"page"`
	ImageBase64   string      `json:"image_base64_png"`
	WidthPx       int         `json:"width_px"`
	HeightPx      int         `json:"height_px"`
	GridDetected  bool        `json:"grid_detected"`
	Dimensions    []Dimension `json:"dimensions"`
}

// Assembly is the final output of one process() invocation.
type Assembly struct {
	TotalPages    int          `json:"total_pages"`
	Pages         []PageResult `json:"pages"`
	AllDimensions []Dimension  `json:"all_dimensions"`
	Warnings      []string     `json:"warnings,omitempty"`
}
