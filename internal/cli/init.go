// Package cli provides common CLI initialization utilities shared by
// cmd/spendwise and cmd/spendwise-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendwise/internal/analytics"
	"spendwise/internal/backend"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/textgen"
	"spendwise/internal/textgen/gemini"
	"spendwise/internal/textgen/openai"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Format = log.ParseFormat(os.Getenv("LOG_FORMAT"))
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the configured storage backend or exits the process.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Opened {
	opts, err := backend.OptionsFromConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	opened, err := backend.NewFactory(logger).Open(ctx, opts)
	if err != nil {
		logger.Error("Failed to initialize storage backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return opened
}

// NewGenerator returns the configured text generation provider. Providers
// that fail to start degrade to the disabled generator.
func NewGenerator(logger *log.Logger, cfg *config.Config) textgen.Generator {
	lg := logger.WithComponent(log.ComponentTextGen)
	switch cfg.TextGenProvider {
	case "gemini":
		g, err := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			lg.Error("Failed to initialize Gemini client, insights will use fallbacks", log.FieldError, err)
			return textgen.Disabled{}
		}
		lg.Info("Text generation enabled", log.FieldProvider, g.Name(), "model", cfg.GeminiModel)
		return g
	case "openai":
		g, err := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			lg.Error("Failed to initialize OpenAI client, insights will use fallbacks", log.FieldError, err)
			return textgen.Disabled{}
		}
		lg.Info("Text generation enabled", log.FieldProvider, g.Name(), "model", cfg.OpenAIModel)
		return g
	default:
		lg.Info("Text generation disabled, insights will use deterministic fallbacks")
		return textgen.Disabled{}
	}
}

// DefaultProfile resolves INSIGHTS_PROFILE, falling back to the full profile.
func DefaultProfile(cfg *config.Config) analytics.Profile {
	if p, ok := analytics.ProfileByName(cfg.InsightsProfile); ok {
		return p
	}
	return analytics.FullProfile
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
