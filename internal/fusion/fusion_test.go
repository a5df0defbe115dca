package fusion

import (
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bbox(xmin, ymin, xmax, ymax int) model.BBox {
	return model.BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
}

// TestMatchStrategy1ExactText covers S1: a grouped OCR span whose text
// exactly matches the VLM value, near its predicted location, wins via
// the combined score.
func TestMatchStrategy1ExactText(t *testing.T) {
	grouped := []model.OcrSpan{
		{Text: `0.188" Wd. x 7/8" Lg. Key`, BBox: bbox(400, 394, 560, 406), Confidence: 0.9},
	}
	vlm := []model.VlmDimension{
		{Value: `0.188" Wd. x 7/8" Lg. Key`, XPercent: 50, YPercent: 40, Confidence: 0.9},
	}
	out := Match(vlm, grouped, grouped, 12)
	require.Len(t, out, 1)
	assert.Equal(t, `0.188" Wd. x 7/8" Lg. Key`, out[0].Value)
	assert.Equal(t, grouped[0].BBox, out[0].BBox)
}

// TestMatchConsumesSpanOnlyOnce covers S5 and invariant P4: two
// identical OCR spans must each match a distinct VLM entry; neither
// span is reused.
func TestMatchConsumesSpanOnlyOnce(t *testing.T) {
	grouped := []model.OcrSpan{
		{Text: `0.250"`, BBox: bbox(480, 195, 520, 205), Confidence: 0.9},
		{Text: `0.250"`, BBox: bbox(680, 195, 720, 205), Confidence: 0.9},
	}
	vlm := []model.VlmDimension{
		{Value: `0.250"`, XPercent: 50, YPercent: 20, Confidence: 0.9},
		{Value: `0.250"`, XPercent: 70, YPercent: 20, Confidence: 0.9},
	}
	out := Match(vlm, grouped, grouped, 12)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].BBox, out[1].BBox)
}

// TestMatchStrategy4VirtualPlacement covers S4 and B2: a confident VLM
// entry with no OCR support is placed on a synthetic box.
func TestMatchStrategy4VirtualPlacement(t *testing.T) {
	vlm := []model.VlmDimension{
		{Value: "45°", XPercent: 10, YPercent: 10, Confidence: 0.9},
	}
	out := Match(vlm, nil, nil, 12)
	require.Len(t, out, 1)
	assert.Equal(t, VirtualBBoxWidth, out[0].BBox.XMax-out[0].BBox.XMin)
	assert.Equal(t, VirtualBBoxHeight, out[0].BBox.YMax-out[0].BBox.YMin)
}

// TestMatchStrategy4SkippedBelowConfidenceThreshold covers the other
// side of B2's 0.75 threshold: a low-confidence VLM entry with no OCR
// support yields nothing.
func TestMatchStrategy4SkippedBelowConfidenceThreshold(t *testing.T) {
	vlm := []model.VlmDimension{
		{Value: "45°", XPercent: 10, YPercent: 10, Confidence: 0.5},
	}
	out := Match(vlm, nil, nil, 12)
	assert.Empty(t, out)
}

// TestMatchStrategy3RawCombination covers grouping failures that still
// resolve via nearby raw OCR spans.
func TestMatchStrategy3RawCombination(t *testing.T) {
	raw := []model.OcrSpan{
		{Text: "21", BBox: bbox(200, 100, 220, 112), Confidence: 0.9},
		{Text: "Teeth", BBox: bbox(200, 116, 250, 128), Confidence: 0.9},
	}
	vlm := []model.VlmDimension{
		{Value: "21 Teeth", XPercent: 22, YPercent: 11, Confidence: 0.6},
	}
	out := Match(vlm, nil, raw, 12)
	require.Len(t, out, 1)
	assert.Equal(t, "21 Teeth", out[0].Value)
}

// TestMatchStrategy3DoesNotReuseRawSpans covers P4 on the Strategy-3
// path: two VLM entries that both fall through grouped OCR and land on
// the same cluster of raw spans must not be fused from the same
// underlying characters.
func TestMatchStrategy3DoesNotReuseRawSpans(t *testing.T) {
	raw := []model.OcrSpan{
		{Text: "21", BBox: bbox(200, 100, 220, 112), Confidence: 0.9},
		{Text: "Teeth", BBox: bbox(200, 116, 250, 128), Confidence: 0.9},
	}
	vlm := []model.VlmDimension{
		{Value: "21 Teeth", XPercent: 22, YPercent: 11, Confidence: 0.6},
		{Value: "21 Teeth", XPercent: 22, YPercent: 11, Confidence: 0.6},
	}
	out := Match(vlm, nil, raw, 12)
	require.Len(t, out, 1)
	assert.Equal(t, "21 Teeth", out[0].Value)
}

func TestTextSimExactAndSubstring(t *testing.T) {
	assert.Equal(t, 1.0, textSim(`0.250"`, `0.250"`))
	assert.Equal(t, 0.8, textSim(`0.080in`, `0.080in Pitch`))
}
