// Package decode implements the File Decoder (§4.A): it accepts
// opaque bytes, detects PDF vs raster by magic-byte sniffing, and
// emits a uniform per-page record for the rest of the pipeline.
package decode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
)

var (
	pdfMagic  = []byte("%PDF")
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8}
)

// Format is the detected payload format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatPNG
	FormatJPEG
)

// Sniff detects the format from magic bytes first, falling back to
// the filename extension only as a tiebreak.
func Sniff(data []byte, hintFilename string) Format {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	}

	switch strings.ToLower(filepath.Ext(hintFilename)) {
	case ".pdf":
		return FormatPDF
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPEG
	}

	return FormatUnknown
}

// Config controls PDF rasterization.
type Config struct {
	MaxPages int // default 20
	DPI      int // default 200
}

// DefaultConfig returns the spec's default page cap and rasterization DPI.
func DefaultConfig() Config {
	return Config{MaxPages: 20, DPI: 200}
}

// Document is the decoder's full per-request output: the page records
// plus any warnings the decoder itself raised (e.g. the page-count cap).
// TotalPages is the source document's true page count, which may
// exceed len(Pages) when the MAX_PAGES cap truncated processing.
type Document struct {
	TotalPages int
	Pages      []model.PageRaster
	Warnings   []string
}

// Decode accepts opaque bytes and a hint filename, returning a
// Document or a kind-tagged error.
func Decode(data []byte, hintFilename string, cfg Config) (*Document, error) {
	format := Sniff(data, hintFilename)

	switch format {
	case FormatPDF:
		return decodePDF(data, cfg)
	case FormatPNG, FormatJPEG:
		return decodeRaster(data)
	default:
		return nil, model.NewError(model.UnsupportedFormat,
			fmt.Sprintf("unrecognized format (hint=%q)", hintFilename), nil)
	}
}

// decodeRaster handles the single-page raster path: no vector layer.
func decodeRaster(data []byte) (*Document, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.NewError(model.InvalidFile, "failed to decode raster image", err)
	}
	png, widthPx, heightPx := fitForProviders(img, data)

	slog.Debug("decode: single raster page", "width_px", widthPx, "height_px", heightPx)

	return &Document{
		TotalPages: 1,
		Pages: []model.PageRaster{
			{
				Page:     1,
				PNG:      png,
				WidthPx:  widthPx,
				HeightPx: heightPx,
			},
		},
	}, nil
}

// writeTempFile is a small helper used by the PDF path, which must
// hand pdfcpu a filesystem path rather than an in-memory reader.
func writeTempFile(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", func() {}, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return path, cleanup, nil
}
