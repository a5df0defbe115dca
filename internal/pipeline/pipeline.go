// Package pipeline implements the Pipeline Orchestrator (§4.H): it
// sequences decode -> per-page {OCR || VLM} -> group -> fuse -> and a
// final cross-page assembly pass, applying the component-level
// failure policy so that an adapter outage degrades the result
// instead of failing the whole request.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
	"github.com/MeKo-Tech/balloonpipe/internal/decode"
	"github.com/MeKo-Tech/balloonpipe/internal/grid"
	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/ocr"
	"github.com/MeKo-Tech/balloonpipe/internal/vlm"
)

// Config holds every tunable named in spec.md §6's configuration
// table, plus the grid default the Page Assembler falls back to.
type Config struct {
	Decode          decode.Config
	OCR             ocr.Config
	VLM             vlm.Config
	PageConcurrency int
	DefaultGrid     assembler.Grid
}

// DefaultConfig returns the spec's defaults: 20-page cap, 200 DPI,
// page_concurrency 4, 60s/120s adapter timeouts, and the H-A/4-1
// default grid.
func DefaultConfig() Config {
	return Config{
		Decode:          decode.DefaultConfig(),
		OCR:             ocr.DefaultConfig(),
		VLM:             vlm.DefaultConfig(),
		PageConcurrency: 4,
		DefaultGrid:     assembler.DefaultGrid(),
	}
}

// Builder constructs a Pipeline with fluent configuration, mirroring
// the teacher's Builder/Config/Build() shape.
type Builder struct {
	cfg          Config
	ocrClient    ocr.Client
	vlmClient    vlm.Client
	gridDetector grid.Detector
}

// NewBuilder returns a Builder seeded with DefaultConfig and no grid
// detector (the core default grid applies).
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig(), gridDetector: grid.NoneDetector{}}
}

func (b *Builder) WithMaxPages(n int) *Builder {
	b.cfg.Decode.MaxPages = n
	return b
}

func (b *Builder) WithPDFDPI(dpi int) *Builder {
	b.cfg.Decode.DPI = dpi
	return b
}

func (b *Builder) WithPageConcurrency(n int) *Builder {
	b.cfg.PageConcurrency = n
	return b
}

func (b *Builder) WithOCRConfig(cfg ocr.Config) *Builder {
	b.cfg.OCR = cfg
	return b
}

func (b *Builder) WithVLMConfig(cfg vlm.Config) *Builder {
	b.cfg.VLM = cfg
	return b
}

func (b *Builder) WithDefaultGrid(g assembler.Grid) *Builder {
	b.cfg.DefaultGrid = g
	return b
}

// WithOCRClient overrides the OCR adapter, e.g. with a stub in tests.
func (b *Builder) WithOCRClient(c ocr.Client) *Builder {
	b.ocrClient = c
	return b
}

// WithVLMClient overrides the VLM adapter, e.g. with a stub in tests.
func (b *Builder) WithVLMClient(c vlm.Client) *Builder {
	b.vlmClient = c
	return b
}

// WithGridDetector overrides the optional grid-detection collaborator.
func (b *Builder) WithGridDetector(d grid.Detector) *Builder {
	if d != nil {
		b.gridDetector = d
	}
	return b
}

// Build validates configuration and constructs a Pipeline, defaulting
// to HTTP-backed OCR/VLM clients when none were injected.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	if cfg.PageConcurrency <= 0 {
		cfg.PageConcurrency = 4
	}
	if cfg.Decode.MaxPages <= 0 {
		cfg.Decode.MaxPages = 20
	}
	if cfg.Decode.DPI <= 0 {
		cfg.Decode.DPI = 200
	}

	ocrClient := b.ocrClient
	if ocrClient == nil {
		ocrClient = ocr.NewHTTPClient(cfg.OCR)
	}
	vlmClient := b.vlmClient
	if vlmClient == nil {
		vlmClient = vlm.NewHTTPClient(cfg.VLM)
	}

	return &Pipeline{
		cfg:          cfg,
		ocrClient:    ocrClient,
		vlmClient:    vlmClient,
		gridDetector: b.gridDetector,
	}, nil
}

// Pipeline is the stateless per-request computation described by
// spec.md §5: every field here is read-only configuration, shared
// safely across concurrent Process calls.
type Pipeline struct {
	cfg          Config
	ocrClient    ocr.Client
	vlmClient    vlm.Client
	gridDetector grid.Detector
}

// Process is the primary operation named in spec.md §6:
// process(file_bytes, filename) -> Assembly | ErrorKind. A decoder
// failure propagates as a request failure with no partial result;
// every other component-level failure degrades gracefully per §4.H.
func (p *Pipeline) Process(ctx context.Context, fileBytes []byte, filename string) (*model.Assembly, error) {
	doc, err := decode.Decode(fileBytes, filename, p.cfg.Decode)
	if err != nil {
		return nil, err
	}

	outcomes := p.processPages(ctx, doc.Pages)

	pageDims := make([]assembler.PageDimensions, len(outcomes))
	for i, o := range outcomes {
		pageDims[i] = assembler.PageDimensions{Page: o.page, Dims: o.dims, Grid: o.grid}
	}
	allDims := assembler.Assemble(pageDims)

	byPage := make(map[int][]model.Dimension, len(outcomes))
	for _, d := range allDims {
		byPage[d.Page] = append(byPage[d.Page], d)
	}

	pages := make([]model.PageResult, len(outcomes))
	warnings := append([]string(nil), doc.Warnings...)
	for i, o := range outcomes {
		pages[i] = model.PageResult{
			Page:         o.page,
			ImageBase64:  encodeBase64PNG(o.png),
			WidthPx:      o.widthPx,
			HeightPx:     o.heightPx,
			GridDetected: o.gridDetected,
			Dimensions:   byPage[o.page],
		}
		warnings = append(warnings, o.warnings...)
	}

	slog.Info("pipeline: processed request", "total_pages", doc.TotalPages,
		"processed_pages", len(outcomes), "dimensions", len(allDims))

	return &model.Assembly{
		TotalPages:    doc.TotalPages,
		Pages:         pages,
		AllDimensions: allDims,
		Warnings:      warnings,
	}, nil
}

func pageWarning(page int, what string, err error) string {
	return fmt.Sprintf("page %d: %s unavailable: %v", page, what, err)
}
