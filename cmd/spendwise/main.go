package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/analytics"
	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	apphttp "spendwise/internal/http"
	"spendwise/internal/log"
	"spendwise/internal/ocr"
	"spendwise/internal/receipt"
	"spendwise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		logger.Error("Failed to initialize token issuer", log.FieldError, err)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	reports := cache.New[analytics.Report](cache.Options{MaxEntries: 500, TTL: 10 * time.Minute})
	cacheManager.Register(reports)
	cacheManager.Start(5 * time.Minute)

	pipeline := analytics.NewPipeline(store.Store, cli.NewGenerator(logger, cfg), cfg.TextGenTimeout, logger)
	insights := services.NewInsightsService(pipeline, store.Store, reports, cli.DefaultProfile(cfg), logger)

	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Writes still succeed; the worker's stale pass catches up.
			logger.Warn("AMQP unavailable, change messages disabled", log.FieldError, err)
		} else {
			amqpClient.SetLogger(logger)
			publisher = amqpClient
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP_URL not set, change messages disabled")
	}

	receipts, closeArchive := newReceiptService(ctx, logger, cfg)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, apphttp.Dependencies{
		Accounts:      services.NewAccountService(store.Store, tokens, logger),
		Categories:    services.NewCategoryService(store.Store),
		Expenses:      services.NewExpenseService(store.Store, publisher, insights, logger),
		Insights:      insights,
		Receipts:      receipts,
		Authenticator: auth.NewAuthenticator(tokens, store.Store, logger),
		Store:         store.Store,
		InsightsCache: reports,
	}, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if closeArchive != nil {
			if err := closeArchive(); err != nil {
				logger.Warn("Receipt archive close error", log.FieldError, err)
			}
		}
		if store.Close != nil {
			if err := store.Close(); err != nil {
				logger.Error("Storage cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting spendwise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"textgen", cfg.TextGenProvider,
		"ocr", cfg.OCRProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newReceiptService wires OCR and the optional GCS archive. The returned
// close function is nil when no archive is configured.
func newReceiptService(ctx context.Context, logger *log.Logger, cfg *config.Config) (*receipt.Service, func() error) {
	var recognizer ocr.Recognizer
	switch cfg.OCRProvider {
	case "vision":
		v, err := ocr.NewVision(ctx, cfg.GoogleVisionAPIKey)
		if err != nil {
			logger.Error("Failed to initialize Cloud Vision, falling back to tesseract", log.FieldError, err)
			recognizer = ocr.NewTesseract(cfg.TesseractPath)
		} else {
			recognizer = v
		}
	default:
		recognizer = ocr.NewTesseract(cfg.TesseractPath)
	}

	if cfg.ReceiptBucket == "" {
		return receipt.NewService(recognizer, nil, cfg.OCRTimeout, logger), nil
	}
	archive, closeFn, err := receipt.NewGCSArchive(ctx, cfg.ReceiptBucket)
	if err != nil {
		logger.Warn("Receipt archive disabled", log.FieldError, err, "bucket", cfg.ReceiptBucket)
		return receipt.NewService(recognizer, nil, cfg.OCRTimeout, logger), nil
	}
	logger.Info("Receipt archive enabled", "bucket", cfg.ReceiptBucket)
	return receipt.NewService(recognizer, archive, cfg.OCRTimeout, logger), closeFn
}
