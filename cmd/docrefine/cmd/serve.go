package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the document enhancement API",
	Long: `Start an HTTP server that accepts converted documents for enhancement.

The server provides the following endpoints:
  POST /v1/enhance           - Submit a document with enhancement options
  GET  /v1/status/poll/{id}  - Poll task status
  GET  /v1/result/{id}       - Fetch the (single-use) enhanced result
  GET  /ws/{id}              - Task status over WebSocket
  GET  /health               - Health check endpoint
  GET  /metrics              - Prometheus metrics

Examples:
  docrefine serve
  docrefine serve --port 8080
  docrefine serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

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
			maxUploadMB, _ = cmd.Flags().GetInt64("max-upload-size")
		}
		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}
		shutdownTimeout := cfg.Server.ShutdownTimeout

		engine := ocr.NewEngine(cfg.OCRConfigFor())
		defer func() { _ = engine.Close() }()

		srv := server.NewServer(server.Config{
			Host:          host,
			Port:          port,
			CORSOrigin:    corsOrigin,
			MaxUploadMB:   maxUploadMB,
			TimeoutSec:    timeout,
			EnhanceConfig: cfg.EnhanceConfigFor(),
		}, engine)

		addr := fmt.Sprintf("%s:%d", host, port)
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting enhancement server", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			slog.Info("Shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "host to bind the server to")
	serveCmd.Flags().IntP("port", "p", 8080, "port to bind the server to")
	serveCmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	serveCmd.Flags().Int64("max-upload-size", 50, "maximum request size in MB")
	serveCmd.Flags().Int("timeout", 300, "request timeout in seconds")

	rootCmd.AddCommand(serveCmd)
}
