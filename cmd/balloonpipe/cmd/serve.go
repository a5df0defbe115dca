package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/balloonpipe/internal/pipeline"
	"github.com/MeKo-Tech/balloonpipe/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for the dimension pipeline",
	Long: `Start an HTTP server exposing process(), recompute_zone, and
make_manual_dimension over REST, plus a WebSocket endpoint for
streaming progress.

The server provides the following endpoints:
  POST /v1/process                      - process() a drawing upload
  POST /v1/dimensions/recompute-zone    - re-zone an edited bounding box
  POST /v1/dimensions/manual            - add a manually-placed dimension
  GET  /ws/process                      - process() with progress over WebSocket
  GET  /health                          - health check
  GET  /metrics                         - Prometheus metrics

Examples:
  balloonpipe serve
  balloonpipe serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		maxUploadMB := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			v, _ := cmd.Flags().GetInt("max-upload-size")
			maxUploadMB = int64(v)
		}
		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}
		shutdownTimeout, _ := cmd.Flags().GetInt("shutdown-timeout")

		rateLimitEnabled := cfg.RateLimit.Enabled
		if cmd.Flags().Changed("rate-limit-enabled") {
			rateLimitEnabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
		}
		requestsPerMinute := cfg.RateLimit.RequestsPerMinute
		if cmd.Flags().Changed("requests-per-minute") {
			requestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
		}
		requestsPerHour := cfg.RateLimit.RequestsPerHour
		if cmd.Flags().Changed("requests-per-hour") {
			requestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		pCfg := pipeline.DefaultConfig()
		pCfg.Decode.MaxPages = cfg.Pipeline.MaxPages
		pCfg.Decode.DPI = cfg.Pipeline.PDFDPI
		pCfg.PageConcurrency = cfg.Pipeline.PageConcurrency
		pCfg.DefaultGrid = defaultGridFrom(cfg)
		pCfg.OCR = ocrConfigFrom(cfg)
		pCfg.VLM = vlmConfigFrom(cfg)

		serverConfig := server.Config{
			Host:           host,
			Port:           port,
			CORSOrigin:     corsOrigin,
			MaxUploadMB:    maxUploadMB,
			TimeoutSec:     timeout,
			PipelineConfig: pCfg,
			RateLimit: server.RateLimitConfig{
				Enabled:           rateLimitEnabled,
				RequestsPerMinute: requestsPerMinute,
				RequestsPerHour:   requestsPerHour,
			},
		}

		srv, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = srv.Close() }()

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			slog.Info("Starting balloonpipe server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 25, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 180, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("rate-limit-enabled", true, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
}
