package cmd

import (
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
	"github.com/MeKo-Tech/balloonpipe/internal/config"
	"github.com/MeKo-Tech/balloonpipe/internal/grid"
	"github.com/MeKo-Tech/balloonpipe/internal/ocr"
	"github.com/MeKo-Tech/balloonpipe/internal/vlm"
)

func ocrConfigFrom(cfg *config.Config) ocr.Config {
	return ocr.Config{
		Endpoint: cfg.OCR.Endpoint,
		APIKey:   cfg.OCR.APIKey,
		Timeout:  time.Duration(cfg.OCR.TimeoutS) * time.Second,
	}
}

func vlmConfigFrom(cfg *config.Config) vlm.Config {
	return vlm.Config{
		Endpoint: cfg.VLM.Endpoint,
		APIKey:   cfg.VLM.APIKey,
		Timeout:  time.Duration(cfg.VLM.TimeoutS) * time.Second,
	}
}

func gridConfigFrom(cfg *config.Config) grid.Config {
	return grid.Config{
		Endpoint: cfg.Grid.Endpoint,
		APIKey:   cfg.Grid.APIKey,
		Timeout:  time.Duration(cfg.Grid.TimeoutS) * time.Second,
	}
}

func defaultGridFrom(cfg *config.Config) assembler.Grid {
	return assembler.Grid{
		Columns: cfg.Pipeline.DefaultGridColumns,
		Rows:    cfg.Pipeline.DefaultGridRows,
	}
}

func gridDetectorFrom(cfg *config.Config) grid.Detector {
	if !cfg.Grid.Enabled || cfg.Grid.Endpoint == "" {
		return grid.NoneDetector{}
	}
	return grid.NewHTTPDetector(gridConfigFrom(cfg))
}
