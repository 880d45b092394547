// Package cli holds the start-up steps shared by cmd/saldi and
// cmd/saldi-recurring.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saldi/internal/backend"
	"saldi/internal/config"
	"saldi/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// NewLogger builds the process logger from the configured level and format
// and installs it as the slog default.
func NewLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// Setup loads the environment and configuration and returns a logger for
// component. It exits the process when the configuration is invalid.
func Setup(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := NewLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		Fatal(logger, "Configuration validation failed", err)
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// OpenBackend creates the configured ledger backend. adjust, when set, may
// change the derived backend config first. It exits the process on failure.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger, adjust func(*backend.Config)) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		Fatal(logger, "Invalid backend configuration", err)
	}
	if adjust != nil {
		adjust(&backendCfg)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		Fatal(logger, "Failed to initialize backend", err, log.FieldBackend, cfg.DataBackend)
	}
	return result
}

// Close runs the backend cleanup, logging a failure.
func Close(result *backend.BackendResult, logger *log.Logger) {
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup failed", log.FieldError, err.Error())
	}
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err.Error()}, args...)...)
	os.Exit(1)
}
