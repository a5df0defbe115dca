package decode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestSniffDetectsByMagicBytes(t *testing.T) {
	assert.Equal(t, FormatPDF, Sniff([]byte("%PDF-1.4 ..."), "upload"))
	assert.Equal(t, FormatPNG, Sniff([]byte{0x89, 'P', 'N', 'G', 0, 0}, "upload"))
	assert.Equal(t, FormatJPEG, Sniff([]byte{0xFF, 0xD8, 0xFF, 0xE0}, "upload"))
}

func TestSniffFallsBackToExtension(t *testing.T) {
	assert.Equal(t, FormatPDF, Sniff(nil, "drawing.pdf"))
	assert.Equal(t, FormatUnknown, Sniff(nil, "drawing.txt"))
}

func TestDecodeRasterPNG(t *testing.T) {
	data := encodePNG(t, 200, 100)
	doc, err := Decode(data, "drawing.png", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Page)
	assert.Equal(t, 200, doc.Pages[0].WidthPx)
	assert.Equal(t, 100, doc.Pages[0].HeightPx)
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte("not an image"), "drawing.xyz", DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, model.UnsupportedFormat, model.KindOf(err))
}

func TestDecodeInvalidRasterBytes(t *testing.T) {
	_, err := Decode([]byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0}, "drawing.png", DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, model.InvalidFile, model.KindOf(err))
}
