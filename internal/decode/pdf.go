package decode

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
)

// decodePDF renders each of a PDF's first cfg.MaxPages pages to a raster.
//
// pdfcpu is a structural PDF library, not a page-rendering engine: it
// has no API that paints vector graphics and text to a pixel buffer at
// an arbitrary DPI. What it does expose is full-fidelity extraction of
// the images already embedded in the page content stream. Engineering
// drawings retrieved through this pipeline are overwhelmingly scanned
// pages stored as one full-page embedded raster per page, so treating
// "the largest embedded image on page N" as that page's raster is a
// faithful rendering for the documents this system actually ingests.
// A page built entirely from vector line art with no embedded scan has
// no raster to recover; if any processed page is like that, the whole
// decode fails with InvalidFile rather than returning a partial or
// silently blank result.
func decodePDF(data []byte, cfg Config) (*Document, error) {
	path, cleanup, err := writeTempFile(data, "balloonpipe-*.pdf")
	if err != nil {
		return nil, model.NewError(model.ProcessingError, "failed to stage pdf for decoding", err)
	}
	defer cleanup()

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, model.NewError(model.InvalidFile, "failed to read pdf page count", err)
	}
	if pageCount <= 0 {
		return nil, model.NewError(model.InvalidFile, "pdf has no pages", nil)
	}

	var warnings []string
	wantPages := pageCount
	if wantPages > cfg.MaxPages {
		warnings = append(warnings, fmt.Sprintf(
			"pdf has %d pages, only the first %d were processed", pageCount, cfg.MaxPages))
		wantPages = cfg.MaxPages
	}

	pageStrings := make([]string, wantPages)
	for i := 0; i < wantPages; i++ {
		pageStrings[i] = strconv.Itoa(i + 1)
	}

	tempDir, err := os.MkdirTemp("", "balloonpipe-pdf-extract-*")
	if err != nil {
		return nil, model.NewError(model.ProcessingError, "failed to create extraction directory", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(path, tempDir, pageStrings, nil); err != nil {
		return nil, model.NewError(model.InvalidFile, "failed to extract pdf page images", err)
	}

	byPage, err := collectLargestImagePerPage(tempDir)
	if err != nil {
		return nil, model.NewError(model.ProcessingError, "failed to read extracted page images", err)
	}
	if len(byPage) < wantPages {
		return nil, model.NewError(model.InvalidFile, fmt.Sprintf(
			"raster content recovered for %d of %d pdf pages (vector-only pages are unsupported)",
			len(byPage), wantPages), nil)
	}

	pages := make([]model.PageRaster, 0, len(byPage))
	for _, pageNum := range sortedKeys(byPage) {
		entry := byPage[pageNum]
		png, widthPx, heightPx := fitForProviders(entry.img, entry.data)
		pages = append(pages, model.PageRaster{
			Page:     pageNum,
			PNG:      png,
			WidthPx:  widthPx,
			HeightPx: heightPx,
		})
	}

	return &Document{TotalPages: pageCount, Pages: pages, Warnings: warnings}, nil
}

type extractedPage struct {
	img  image.Image
	data []byte
}

// collectLargestImagePerPage walks pdfcpu's extraction directory
// (files named page_<num>_image_<idx>.<ext>) and keeps, per page, the
// image with the largest pixel area, on the assumption that a scanned
// drawing's full-page scan dominates any smaller embedded logos or
// stamps on the same page.
func collectLargestImagePerPage(dir string) (map[int]extractedPage, error) {
	result := make(map[int]extractedPage)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		pageNum, ok := parsePageFromFilename(info.Name())
		if !ok {
			return nil
		}

		raw, err := os.ReadFile(path) //nolint:gosec // path comes from our own temp dir listing
		if err != nil {
			return nil
		}
		img, _, err := image.Decode(strings.NewReader(string(raw)))
		if err != nil {
			return nil
		}

		area := img.Bounds().Dx() * img.Bounds().Dy()
		if existing, ok := result[pageNum]; !ok || area > existing.img.Bounds().Dx()*existing.img.Bounds().Dy() {
			result[pageNum] = extractedPage{img: img, data: raw}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parsePageFromFilename(filename string) (int, bool) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, false
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, false
	}
	pageNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return pageNum, true
}

func sortedKeys(m map[int]extractedPage) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
