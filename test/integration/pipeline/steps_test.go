package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"testing"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/pipeline"
	"github.com/cucumber/godog"
)

type stubOCR struct {
	spans []model.OcrSpan
}

func (s stubOCR) Detect(context.Context, []byte, int, int) ([]model.OcrSpan, error) {
	return s.spans, nil
}

type stubVLM struct {
	dims []model.VlmDimension
}

func (s stubVLM) Identify(context.Context, []byte) ([]model.VlmDimension, error) {
	return s.dims, nil
}

// dimensionContext holds one scenario's state, reset at the start of
// every scenario by InitializeScenario.
type dimensionContext struct {
	ocrSpans []model.OcrSpan
	vlmDims  []model.VlmDimension
	assembly *model.Assembly
	err      error
}

func blankPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func (c *dimensionContext) pageWithOCRSpans(table *godog.Table) error {
	c.ocrSpans = nil
	for _, row := range table.Rows[1:] {
		xmin, _ := strconv.Atoi(row.Cells[1].Value)
		ymin, _ := strconv.Atoi(row.Cells[2].Value)
		xmax, _ := strconv.Atoi(row.Cells[3].Value)
		ymax, _ := strconv.Atoi(row.Cells[4].Value)
		c.ocrSpans = append(c.ocrSpans, model.OcrSpan{
			Text:       row.Cells[0].Value,
			BBox:       model.BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax},
			Confidence: 0.9,
		})
	}
	return nil
}

func (c *dimensionContext) pageWithNoOCRSpans() error {
	c.ocrSpans = nil
	return nil
}

func (c *dimensionContext) vlmReports(table *godog.Table) error {
	c.vlmDims = nil
	for _, row := range table.Rows[1:] {
		xPct, _ := strconv.ParseFloat(row.Cells[1].Value, 64)
		yPct, _ := strconv.ParseFloat(row.Cells[2].Value, 64)
		c.vlmDims = append(c.vlmDims, model.VlmDimension{
			Value:      row.Cells[0].Value,
			XPercent:   xPct,
			YPercent:   yPct,
			Confidence: 0.9,
		})
	}
	return nil
}

func (c *dimensionContext) vlmReportsNoEntries() error {
	c.vlmDims = nil
	return nil
}

func (c *dimensionContext) thePageIsProcessed() error {
	pl, err := pipeline.NewBuilder().
		WithOCRClient(stubOCR{spans: c.ocrSpans}).
		WithVLMClient(stubVLM{dims: c.vlmDims}).
		Build()
	if err != nil {
		return err
	}
	c.assembly, c.err = pl.Process(context.Background(), blankPNG(1000, 1000), "drawing.png")
	return c.err
}

func (c *dimensionContext) exactlyNDimensionsAreReturned(n int) error {
	if c.err != nil {
		return c.err
	}
	if got := len(c.assembly.AllDimensions); got != n {
		return fmt.Errorf("expected %d dimensions, got %d", n, got)
	}
	return nil
}

func (c *dimensionContext) dimensionNHasValue(n int, value string) error {
	value = strings.ReplaceAll(value, `\"`, `"`)
	d := c.assembly.AllDimensions[n-1]
	if d.Value != value {
		return fmt.Errorf("expected dimension %d value %q, got %q", n, value, d.Value)
	}
	return nil
}

func (c *dimensionContext) dimensionNBBoxSpans(n, xmin, xmax int) error {
	d := c.assembly.AllDimensions[n-1]
	if d.BBox.XMin != xmin || d.BBox.XMax != xmax {
		return fmt.Errorf("expected bbox x range [%d,%d], got [%d,%d]", xmin, xmax, d.BBox.XMin, d.BBox.XMax)
	}
	return nil
}

func (c *dimensionContext) thePageResultIsStillPresent() error {
	if len(c.assembly.Pages) != 1 {
		return fmt.Errorf("expected 1 page result, got %d", len(c.assembly.Pages))
	}
	return nil
}

func (c *dimensionContext) theAssemblyReportsTotalPages(n int) error {
	if c.assembly.TotalPages != n {
		return fmt.Errorf("expected total_pages %d, got %d", n, c.assembly.TotalPages)
	}
	return nil
}

// InitializeScenario registers the step definitions above against a
// fresh dimensionContext for each scenario.
func InitializeScenario(sc *godog.ScenarioContext) {
	c := &dimensionContext{}

	sc.Given(`^a page with OCR spans:$`, c.pageWithOCRSpans)
	sc.Given(`^a page with no OCR spans$`, c.pageWithNoOCRSpans)
	sc.Given(`^the VLM reports:$`, c.vlmReports)
	sc.Given(`^the VLM reports no entries$`, c.vlmReportsNoEntries)
	sc.When(`^the page is processed$`, c.thePageIsProcessed)
	sc.Then(`^exactly (\d+) dimensions? (?:is|are) returned$`, c.exactlyNDimensionsAreReturned)
	sc.Then(`^dimension (\d+) has value "(.*)"$`, c.dimensionNHasValue)
	sc.Then(`^dimension (\d+)'s bounding box spans from x=(\d+) to x=(\d+)$`, c.dimensionNBBoxSpans)
	sc.Then(`^the page result is still present$`, c.thePageResultIsStillPresent)
	sc.Then(`^the assembly reports total_pages (\d+)$`, c.theAssemblyReportsTotalPages)
}

// TestFeatures runs the scenarios under features/ against the step
// definitions registered by InitializeScenario.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
