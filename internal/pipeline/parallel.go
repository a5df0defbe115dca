package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
	"github.com/MeKo-Tech/balloonpipe/internal/fusion"
	"github.com/MeKo-Tech/balloonpipe/internal/grouper"
	"github.com/MeKo-Tech/balloonpipe/internal/model"
)

// pageOutcome is one page's fully-processed result, joined back into
// the assembly by Process.
type pageOutcome struct {
	page         int
	png          []byte
	widthPx      int
	heightPx     int
	gridDetected bool
	grid         assembler.Grid
	dims         []model.Dimension
	warnings     []string
}

// processPages fans a request's pages out across a bounded worker
// pool (§5: "a simple fan-out over pages is permitted and recommended,
// bounded by a configurable concurrency limit"), preserving per-page
// result order regardless of completion order so reading-order ID
// assignment stays deterministic (R3).
func (p *Pipeline) processPages(ctx context.Context, pages []model.PageRaster) []pageOutcome {
	if len(pages) == 0 {
		return nil
	}

	workers := p.cfg.PageConcurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	jobs := make(chan int)
	results := make([]pageOutcome, len(pages))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.processPage(ctx, pages[idx])
			}
		}()
	}
	for i := range pages {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// processPage runs one page through B||C, D, and F. OCR and VLM are
// dispatched concurrently; the orchestrator joins both before grid
// detection, grouping or fusion runs.
func (p *Pipeline) processPage(ctx context.Context, pr model.PageRaster) pageOutcome {
	var (
		ocrSpans []model.OcrSpan
		vlmDims  []model.VlmDimension
		ocrErr   error
		vlmErr   error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ocrSpans, ocrErr = p.ocrClient.Detect(ctx, pr.PNG, pr.WidthPx, pr.HeightPx)
	}()
	go func() {
		defer wg.Done()
		vlmDims, vlmErr = p.vlmClient.Identify(ctx, pr.PNG)
	}()
	wg.Wait()

	var warnings []string
	if ocrErr != nil {
		slog.Warn("pipeline: ocr adapter failed, continuing with empty spans", "page", pr.Page, "err", ocrErr)
		warnings = append(warnings, pageWarning(pr.Page, "OCR", ocrErr))
		ocrSpans = nil
	}
	if vlmErr != nil {
		slog.Warn("pipeline: vlm adapter failed, page yields zero dimensions", "page", pr.Page, "err", vlmErr)
		warnings = append(warnings, pageWarning(pr.Page, "VLM", vlmErr))
		vlmDims = nil
	}

	pageGrid := p.cfg.DefaultGrid
	gridDetected := false
	if p.gridDetector != nil {
		if detected, err := p.gridDetector.DetectGrid(ctx, pr.PNG); err == nil && detected != nil {
			pageGrid = *detected
			gridDetected = true
		}
	}

	validSpans := discardDegenerate(ocrSpans)
	grouped, groupWarn := safeGroup(pr.Page, validSpans)
	warnings = append(warnings, groupWarn...)

	th := grouper.DeriveThresholds(validSpans)
	dims, matchWarn := safeMatch(pr.Page, vlmDims, grouped, validSpans, th.AvgCharHeight)
	warnings = append(warnings, matchWarn...)

	return pageOutcome{
		page:         pr.Page,
		png:          pr.PNG,
		widthPx:      pr.WidthPx,
		heightPx:     pr.HeightPx,
		gridDetected: gridDetected,
		grid:         pageGrid,
		dims:         dims,
		warnings:     warnings,
	}
}

// discardDegenerate drops zero-area spans before grouping, per the
// BBox invariant (B4): a degenerate span must never reach the grouper.
func discardDegenerate(spans []model.OcrSpan) []model.OcrSpan {
	out := make([]model.OcrSpan, 0, len(spans))
	for _, s := range spans {
		if s.BBox.Degenerate() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// safeGroup runs the token grouper behind a recover, per §4.H's
// pattern-library/grouper exception policy: drop the page's spans and
// continue rather than fail the whole request.
func safeGroup(page int, spans []model.OcrSpan) (grouped []model.OcrSpan, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pipeline: grouper panicked, dropping page spans", "page", page, "recover", r)
			grouped = nil
			warnings = []string{pageWarning(page, "grouper", errorFromRecover(r))}
		}
	}()
	return grouper.Group(spans), nil
}

// safeMatch runs the fusion matcher behind a recover, for the same
// reason as safeGroup.
func safeMatch(page int, vlmDims []model.VlmDimension, grouped, raw []model.OcrSpan, avgCharHeight float64) (dims []model.Dimension, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pipeline: fusion matcher panicked, dropping page dimensions", "page", page, "recover", r)
			dims = nil
			warnings = []string{pageWarning(page, "fusion", errorFromRecover(r))}
		}
	}()
	return fusion.Match(vlmDims, grouped, raw, avgCharHeight), nil
}

func errorFromRecover(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

func encodeBase64PNG(png []byte) string {
	return base64.StdEncoding.EncodeToString(png)
}
