package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOCR struct {
	spans []model.OcrSpan
	err   error
}

func (s stubOCR) Detect(context.Context, []byte, int, int) ([]model.OcrSpan, error) {
	return s.spans, s.err
}

type stubVLM struct {
	dims []model.VlmDimension
	err  error
}

func (s stubVLM) Identify(context.Context, []byte) ([]model.VlmDimension, error) {
	return s.dims, s.err
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// S1: two adjacent OCR spans merge into one fused dimension whose
// bbox is their union, keyed to the VLM's compound-atom value.
func TestProcessFusesCompoundAtom(t *testing.T) {
	data := encodePNG(t, 1000, 1000)

	ocrSpans := []model.OcrSpan{
		{Text: `0.188" Wd.`, BBox: model.BBox{XMin: 400, YMin: 390, XMax: 480, YMax: 410}, Confidence: 0.9},
		{Text: `7/8" Lg. Key`, BBox: model.BBox{XMin: 485, YMin: 390, XMax: 560, YMax: 410}, Confidence: 0.9},
	}
	vlmDims := []model.VlmDimension{
		{Value: `0.188" Wd. x 7/8" Lg. Key`, XPercent: 48, YPercent: 40, Confidence: 0.9},
	}

	pl, err := NewBuilder().
		WithOCRClient(stubOCR{spans: ocrSpans}).
		WithVLMClient(stubVLM{dims: vlmDims}).
		Build()
	require.NoError(t, err)

	assembly, err := pl.Process(context.Background(), data, "drawing.png")
	require.NoError(t, err)
	require.Len(t, assembly.AllDimensions, 1)

	d := assembly.AllDimensions[0]
	assert.Equal(t, 1, d.ID)
	assert.Equal(t, `0.188" Wd. x 7/8" Lg. Key`, d.Value)
	assert.Equal(t, 400, d.BBox.XMin)
	assert.Equal(t, 560, d.BBox.XMax)
	require.NotNil(t, d.Zone)
}

// B3: an empty VLM list yields zero dimensions but the page still
// returns.
func TestProcessEmptyVLMYieldsNoDimensions(t *testing.T) {
	data := encodePNG(t, 500, 500)

	pl, err := NewBuilder().
		WithOCRClient(stubOCR{spans: []model.OcrSpan{
			{Text: "0.250\"", BBox: model.BBox{XMin: 100, YMin: 100, XMax: 150, YMax: 120}, Confidence: 0.9},
		}}).
		WithVLMClient(stubVLM{dims: nil}).
		Build()
	require.NoError(t, err)

	assembly, err := pl.Process(context.Background(), data, "drawing.png")
	require.NoError(t, err)
	assert.Empty(t, assembly.AllDimensions)
	require.Len(t, assembly.Pages, 1)
}

// §4.H failure policy: an OCR adapter error degrades to Strategy 4
// virtual placement rather than failing the request.
func TestProcessOCRFailureDegradesToVirtualPlacement(t *testing.T) {
	data := encodePNG(t, 500, 500)

	pl, err := NewBuilder().
		WithOCRClient(stubOCR{err: errors.New("boom")}).
		WithVLMClient(stubVLM{dims: []model.VlmDimension{
			{Value: "45°", XPercent: 10, YPercent: 10, Confidence: 0.9},
		}}).
		Build()
	require.NoError(t, err)

	assembly, err := pl.Process(context.Background(), data, "drawing.png")
	require.NoError(t, err)
	require.Len(t, assembly.AllDimensions, 1)
	assert.Equal(t, "45°", assembly.AllDimensions[0].Value)
	assert.NotEmpty(t, assembly.Warnings)
}

// §4.H failure policy: a VLM adapter error yields zero dimensions but
// the raster still returns, and the decoder failure path is untouched.
func TestProcessVLMFailureYieldsNoDimensionsButPageReturns(t *testing.T) {
	data := encodePNG(t, 500, 500)

	pl, err := NewBuilder().
		WithOCRClient(stubOCR{spans: []model.OcrSpan{
			{Text: "0.250\"", BBox: model.BBox{XMin: 100, YMin: 100, XMax: 150, YMax: 120}, Confidence: 0.9},
		}}).
		WithVLMClient(stubVLM{err: errors.New("boom")}).
		Build()
	require.NoError(t, err)

	assembly, err := pl.Process(context.Background(), data, "drawing.png")
	require.NoError(t, err)
	assert.Empty(t, assembly.AllDimensions)
	require.Len(t, assembly.Pages, 1)
	assert.NotEmpty(t, assembly.Warnings)
}

// P6: a single raster image always yields total_pages==1.
func TestProcessSingleRasterTotalPagesIsOne(t *testing.T) {
	data := encodePNG(t, 300, 300)

	pl, err := NewBuilder().
		WithOCRClient(stubOCR{}).
		WithVLMClient(stubVLM{}).
		Build()
	require.NoError(t, err)

	assembly, err := pl.Process(context.Background(), data, "drawing.png")
	require.NoError(t, err)
	assert.Equal(t, 1, assembly.TotalPages)
	require.Len(t, assembly.Pages, 1)
	assert.Equal(t, 1, assembly.Pages[0].Page)
}

// Decoder failure propagates as a request failure with no assembly.
func TestProcessUnsupportedFormatFails(t *testing.T) {
	pl, err := NewBuilder().
		WithOCRClient(stubOCR{}).
		WithVLMClient(stubVLM{}).
		Build()
	require.NoError(t, err)

	_, err = pl.Process(context.Background(), []byte("not a drawing"), "drawing.xyz")
	require.Error(t, err)
	assert.Equal(t, model.UnsupportedFormat, model.KindOf(err))
}
