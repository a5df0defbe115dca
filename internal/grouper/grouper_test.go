package grouper

import (
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(text string, xmin, ymin, xmax, ymax int) model.OcrSpan {
	return model.OcrSpan{Text: text, BBox: model.BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}, Confidence: 0.9}
}

// TestGroupMergesCompoundAtom covers S1: two adjacent spans describing
// one compound dimension must merge into a single span whose bbox is
// their union.
func TestGroupMergesCompoundAtom(t *testing.T) {
	spans := []model.OcrSpan{
		span(`0.188" Wd.`, 400, 394, 470, 406),
		span(`x`, 472, 394, 480, 406),
		span(`7/8" Lg. Key`, 482, 394, 560, 406),
	}
	out := Group(spans)
	require.Len(t, out, 1)
	assert.Equal(t, 400, out[0].BBox.XMin)
	assert.Equal(t, 560, out[0].BBox.XMax)
}

// TestGroupAntiMergeSafeguard covers S2: two independently stacked
// features, far apart vertically, must never collapse into one
// merged span spanning both.
func TestGroupAntiMergeSafeguard(t *testing.T) {
	spans := []model.OcrSpan{
		span("21", 200, 100, 220, 112),
		span("Teeth", 200, 116, 250, 128),
		span("0.080in", 200, 300, 250, 312),
		span("Pitch", 200, 316, 250, 328),
	}
	out := Group(spans)
	for _, o := range out {
		assert.NotContains(t, o.Text, "21 Teeth 0.080in")
	}
	require.GreaterOrEqual(t, len(out), 2)
}

// TestGroupMixedFraction covers S6: a small horizontal gap between an
// integer and a fraction merges under the mixed-fraction rule.
func TestGroupMixedFraction(t *testing.T) {
	spans := []model.OcrSpan{
		span("3", 100, 100, 112, 112),
		span(`1/4"`, 118, 100, 150, 112),
	}
	out := Group(spans)
	require.Len(t, out, 1)
	assert.Equal(t, `3 1/4"`, out[0].Text)
}

func TestGroupDropsNothingForEmptyInput(t *testing.T) {
	assert.Empty(t, Group(nil))
}

func TestDeriveThresholdsBoundsAvgCharHeight(t *testing.T) {
	tiny := DeriveThresholds([]model.OcrSpan{span("x", 0, 0, 1, 1)})
	assert.Equal(t, 5.0, tiny.AvgCharHeight)

	huge := DeriveThresholds([]model.OcrSpan{span("x", 0, 0, 1, 500)})
	assert.Equal(t, 200.0, huge.AvgCharHeight)
}
