package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Pipeline.MaxPages)
	assert.Equal(t, 200, cfg.Pipeline.PDFDPI)
	assert.Equal(t, 4, cfg.Pipeline.PageConcurrency)
	assert.Equal(t, 60, cfg.OCR.TimeoutS)
	assert.Equal(t, 120, cfg.VLM.TimeoutS)
	assert.Equal(t, []string{"H", "G", "F", "E", "D", "C", "B", "A"}, cfg.Pipeline.DefaultGridColumns)
	assert.Equal(t, []string{"4", "3", "2", "1"}, cfg.Pipeline.DefaultGridRows)
}

func TestValidateRejectsNonPositiveMaxPages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.MaxPages = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.DefaultGridColumns = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveUploadCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.MaxUploadMB = 0
	assert.Error(t, cfg.Validate())
}
