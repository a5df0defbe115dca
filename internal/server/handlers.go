package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/assembler"
	"github.com/MeKo-Tech/balloonpipe/internal/balloon"
	"github.com/MeKo-Tech/balloonpipe/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// metricsHandler exposes Prometheus metrics.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// processHandler runs process() (spec.md §6) on an uploaded drawing:
// multipart upload in, a fused Assembly out as JSON. Mirrors the
// teacher's ocrImageHandler/ocrPdfHandler MaxBytesReader + multipart
// parsing pattern.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeProcessError(w, "Failed to parse form data", http.StatusBadRequest)
		processRequestsTotal.WithLabelValues("upload", "error").Inc()
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeProcessError(w, "No file provided", http.StatusBadRequest)
		processRequestsTotal.WithLabelValues("upload", "error").Inc()
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeProcessError(w, "File too large", http.StatusRequestEntityTooLarge)
		processRequestsTotal.WithLabelValues("upload", "error").Inc()
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeProcessError(w, "Failed to read file data", http.StatusInternalServerError)
		processRequestsTotal.WithLabelValues("upload", "error").Inc()
		return
	}

	start := time.Now()
	assembly, err := s.pipeline.Process(r.Context(), data, header.Filename)
	duration := time.Since(start)

	if err != nil {
		processRequestsTotal.WithLabelValues("upload", "error").Inc()
		s.writeProcessError(w, fmt.Sprintf("processing failed: %v", err), statusForKind(model.KindOf(err)))
		return
	}

	processRequestsTotal.WithLabelValues("upload", "success").Inc()
	processDuration.WithLabelValues("upload").Observe(duration.Seconds())
	dimensionsDetected.WithLabelValues("upload").Observe(float64(len(assembly.AllDimensions)))
	pagesProcessed.WithLabelValues("upload").Observe(float64(len(assembly.Pages)))

	w.Header().Set("Content-Type", "application/json")
	resp := ProcessResponse{Success: true, Result: toProcessPayload(assembly)}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding process response: %v\n", err)
	}
}

// recomputeZoneHandler re-zones a dimension whose bounding box was
// adjusted by a caller, without re-running the pipeline.
func (s *Server) recomputeZoneHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecomputeZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRecomputeZoneError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	grid := assembler.DefaultGrid()
	if req.Grid != nil {
		grid = assembler.Grid{Columns: req.Grid.Columns, Rows: req.Grid.Rows}
	}

	zone := balloon.RecomputeZone(toModelBBox(req.BBox), grid)

	w.Header().Set("Content-Type", "application/json")
	resp := RecomputeZoneResponse{Success: true, Zone: zone}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding recompute-zone response: %v\n", err)
	}
}

// manualDimensionHandler lets a caller inject a dimension the pipeline
// missed, built by balloon.ManualDimension: bbox clamped to [0,1000],
// id 0 and confidence 1.0; no zone is assigned.
func (s *Server) manualDimensionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ManualDimensionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeManualDimensionError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		s.writeManualDimensionError(w, "value must not be empty", http.StatusBadRequest)
		return
	}

	dim := balloon.ManualDimension(req.Value, toModelBBox(req.BBox))

	w.Header().Set("Content-Type", "application/json")
	resp := ManualDimensionResponse{Success: true, Result: toDimensionPayload(dim)}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding manual-dimension response: %v\n", err)
	}
}

func (s *Server) writeProcessError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ProcessResponse{Success: false, Error: message}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing process error response: %v\n", err)
	}
}

func (s *Server) writeRecomputeZoneError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(RecomputeZoneResponse{Success: false, Error: message}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing recompute-zone error response: %v\n", err)
	}
}

func (s *Server) writeManualDimensionError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ManualDimensionResponse{Success: false, Error: message}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing manual-dimension error response: %v\n", err)
	}
}

// statusForKind maps a model.Kind to the HTTP status a caller should
// see, per §4.H's distinction between caller-fixable and server-side
// failures.
func statusForKind(k model.Kind) int {
	switch k {
	case model.InvalidFile, model.UnsupportedFormat:
		return http.StatusBadRequest
	case model.OcrAPIError, model.VlmAPIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toModelBBox(b BBoxPayload) model.BBox {
	return model.BBox{XMin: b.XMin, YMin: b.YMin, XMax: b.XMax, YMax: b.YMax}
}

func fromModelBBox(b model.BBox) BBoxPayload {
	return BBoxPayload{XMin: b.XMin, YMin: b.YMin, XMax: b.XMax, YMax: b.YMax}
}

func toDimensionPayload(d model.Dimension) *DimensionPayload {
	return &DimensionPayload{
		ID:         d.ID,
		Value:      d.Value,
		BBox:       fromModelBBox(d.BBox),
		Zone:       d.Zone,
		Confidence: d.Confidence,
	}
}

func toProcessPayload(a *model.Assembly) *ProcessPayload {
	allDims := make([]DimensionPayload, len(a.AllDimensions))
	for i, d := range a.AllDimensions {
		allDims[i] = *toDimensionPayload(d)
	}

	pages := make([]PagePayload, len(a.Pages))
	for i, p := range a.Pages {
		dims := make([]DimensionPayload, len(p.Dimensions))
		for j, d := range p.Dimensions {
			dims[j] = *toDimensionPayload(d)
		}
		pages[i] = PagePayload{
			Page:         p.Page,
			ImageBase64:  p.ImageBase64,
			WidthPx:      p.WidthPx,
			HeightPx:     p.HeightPx,
			GridDetected: p.GridDetected,
			Dimensions:   dims,
		}
	}

	return &ProcessPayload{
		TotalPages:    a.TotalPages,
		Pages:         pages,
		AllDimensions: allDims,
		Warnings:      a.Warnings,
	}
}
