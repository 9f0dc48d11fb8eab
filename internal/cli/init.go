// Package cli provides the billtrack command tree and the initialization
// shared by its commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"billtrack/internal/backend"
	"billtrack/internal/config"
	"billtrack/internal/log"
	"billtrack/internal/report/sheets"
	"billtrack/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default. An unknown level falls back to info.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    out,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}
	return logger
}

// OpenBackend creates the storage backend and change feed selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bc.Type, err)
	}
	return res, nil
}

// SheetExporter returns the Google Sheets exporter, or nil when export is
// not configured.
func SheetExporter(ctx context.Context, cfg *config.Config) (services.SheetExporter, error) {
	if !cfg.SheetsExportEnabled() {
		return nil, nil
	}
	exp, err := sheets.New(ctx, cfg.GoogleSpreadsheetID, sheetCredentials(cfg))
	if err != nil {
		return nil, fmt.Errorf("init sheets export: %w", err)
	}
	return exp, nil
}

func sheetCredentials(cfg *config.Config) sheets.Credentials {
	creds := sheets.Credentials{
		JSON:            cfg.GoogleServiceAccountJSON,
		File:            cfg.GoogleServiceAccountFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
	}
	if cfg.UsesOAuth() {
		creds.OAuthTokenFile = cfg.GoogleOAuthTokenFile
	}
	return creds
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// shutdownTimeout bounds draining the HTTP server and the backend.
const shutdownTimeout = 30 * time.Second
