package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/MeKo-Tech/balloonpipe/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// processCmd represents the process command.
var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Run process() on a single PDF or raster drawing",
	Long: `Decode a PDF or raster engineering drawing, run the OCR and
vision-language-model adapters over each page, and print the fused,
ballooned dimensions.

Examples:
  balloonpipe process drawing.pdf
  balloonpipe process drawing.png --format text
  balloonpipe process drawing.pdf --output result.json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("invalid output format: %s (must be json or text)", format)
		}
		outputFile, _ := cmd.Flags().GetString("output")

		path := args[0]
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied CLI path
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		pl, err := pipeline.NewBuilder().
			WithMaxPages(cfg.Pipeline.MaxPages).
			WithPDFDPI(cfg.Pipeline.PDFDPI).
			WithPageConcurrency(cfg.Pipeline.PageConcurrency).
			WithDefaultGrid(defaultGridFrom(cfg)).
			WithOCRConfig(ocrConfigFrom(cfg)).
			WithVLMConfig(vlmConfigFrom(cfg)).
			WithGridDetector(gridDetectorFrom(cfg)).
			Build()
		if err != nil {
			return fmt.Errorf("building pipeline: %w", err)
		}

		assembly, err := pl.Process(context.Background(), data, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}

		var rendered []byte
		switch format {
		case outputFormatText:
			rendered = []byte(renderText(assembly))
		default:
			rendered, err = json.MarshalIndent(assembly, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			rendered = append(rendered, '\n')
		}

		if outputFile != "" {
			if err := os.WriteFile(outputFile, rendered, 0o644); err != nil { //nolint:gosec
				return fmt.Errorf("writing %s: %w", outputFile, err)
			}
			return nil
		}
		_, err = cmd.OutOrStdout().Write(rendered)
		return err
	},
}

// renderText formats an Assembly as a human-readable page/dimension
// listing, mirroring the teacher's writePDFTextResponse shape.
func renderText(a *model.Assembly) string {
	var out strings.Builder

	fmt.Fprintf(&out, "Total pages: %d\n", a.TotalPages)
	fmt.Fprintf(&out, "Dimensions found: %d\n\n", len(a.AllDimensions))

	for _, page := range a.Pages {
		fmt.Fprintf(&out, "Page %d (%dx%d):\n", page.Page, page.WidthPx, page.HeightPx)
		for _, d := range page.Dimensions {
			zone := "-"
			if d.Zone != nil {
				zone = *d.Zone
			}
			fmt.Fprintf(&out, "  #%d zone=%s conf=%.2f box=(%d,%d)-(%d,%d) value=%q\n",
				d.ID, zone, d.Confidence, d.BBox.XMin, d.BBox.YMin, d.BBox.XMax, d.BBox.YMax, d.Value)
		}
		out.WriteString("\n")
	}

	if len(a.Warnings) > 0 {
		out.WriteString("Warnings:\n")
		for _, w := range a.Warnings {
			fmt.Fprintf(&out, "  - %s\n", w)
		}
	}

	return out.String()
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().String("format", outputFormatJSON, "output format: json or text")
	processCmd.Flags().String("output", "", "write output to a file instead of stdout")
}
