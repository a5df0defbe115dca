// Package balloon implements the two operations spec.md §6 exposes to
// downstream collaborators: recomputing a dimension's zone after a UI
// drags its balloon, and creating a manual dimension from an
// inspector-drawn region.
package balloon

import (
	"context"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
	"github.com/MeKo-Tech/balloonpipe/internal/fusion"
	"github.com/MeKo-Tech/balloonpipe/internal/grouper"
	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/ocr"
	"github.com/MeKo-Tech/balloonpipe/internal/vlm"
)

// RecomputeZone implements recompute_zone(new_bbox): the zone label
// newBBox falls into under grid (the page's grid, default or
// externally discovered).
func RecomputeZone(newBBox model.BBox, grid assembler.Grid) string {
	return assembler.RecomputeZone(newBBox, grid)
}

// ManualDimension implements make_manual_dimension(value, bbox): a
// dimension an inspector entered directly, with id=0 and full
// confidence, bypassing fusion entirely.
func ManualDimension(value string, bbox model.BBox) model.Dimension {
	return model.Dimension{
		ID:         0,
		Value:      value,
		BBox:       bbox.Clamp(),
		Confidence: 1.0,
	}
}

// CropProcessor runs OCR+VLM on a single cropped raster and feeds the
// results through the grouper and fusion matcher as a one-element
// pipeline, per spec.md §6's description of what the caller's image
// cropper does with make_manual_dimension: "the caller's image cropper
// invokes OCR+VLM on the crop and feeds results back through
// components D-F".
type CropProcessor struct {
	OCR ocr.Client
	VLM vlm.Client
}

// Process detects, identifies, groups, and fuses a single dimension
// out of one cropped region. found is false when the VLM identified
// nothing in the crop.
func (p *CropProcessor) Process(ctx context.Context, raster []byte, widthPx, heightPx int) (dim model.Dimension, found bool, err error) {
	ocrSpans, ocrErr := p.OCR.Detect(ctx, raster, widthPx, heightPx)
	if ocrErr != nil {
		ocrSpans = nil
	}

	vlmDims, vlmErr := p.VLM.Identify(ctx, raster)
	if vlmErr != nil {
		return model.Dimension{}, false, vlmErr
	}
	if len(vlmDims) == 0 {
		return model.Dimension{}, false, nil
	}

	grouped := grouper.Group(ocrSpans)
	th := grouper.DeriveThresholds(ocrSpans)
	dims := fusion.Match(vlmDims[:1], grouped, ocrSpans, th.AvgCharHeight)
	if len(dims) == 0 {
		return model.Dimension{}, false, nil
	}
	return dims[0], true, nil
}
