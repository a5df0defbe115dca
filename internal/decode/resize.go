package decode

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// MaxProviderDimension caps the longest side handed to the OCR/VLM
// adapters. Engineering drawings rasterized from a high-resolution
// scan or a high-DPI PDF render can exceed what either provider wants
// to accept in one request; anything already inside the bound passes
// through untouched.
const MaxProviderDimension = 4000

// fitForProviders downscales img (if needed) to keep its longest side
// within MaxProviderDimension, preserving aspect ratio, and re-encodes
// it as PNG. Images already within bounds are returned as fallback
// unchanged.
func fitForProviders(img image.Image, fallback []byte) ([]byte, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= MaxProviderDimension && h <= MaxProviderDimension {
		return fallback, w, h
	}

	resized := imaging.Fit(img, MaxProviderDimension, MaxProviderDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return fallback, w, h
	}
	rb := resized.Bounds()
	return buf.Bytes(), rb.Dx(), rb.Dy()
}
