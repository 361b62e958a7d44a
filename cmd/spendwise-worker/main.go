package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/analytics"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/sheets"
	gsheet "spendwise/internal/sheets/google"
	"spendwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting spendwise-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if kind, _ := backend.ParseKind(cfg.DataBackend); kind == backend.Memory {
		logger.Error("The worker needs a shared backend, DATA_BACKEND=memory is not supported")
		os.Exit(1)
	}

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)

	pipeline := analytics.NewPipeline(store.Store, cli.NewGenerator(logger, cfg), cfg.TextGenTimeout, logger)
	insights := services.NewInsightsService(pipeline, store.Store, nil, cli.DefaultProfile(cfg), logger)

	var exporter sheets.ExpenseExporter
	if cfg.SheetsEnabled() {
		credentialsFile := cfg.GoogleServiceAccountFile
		if credentialsFile == "" {
			credentialsFile = cfg.GoogleApplicationCredentials
		}
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: credentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	snapshots := worker.NewSnapshotWorker(insights, store.Store, exporter, cfg.SyncBatchSize, logger)
	processor := worker.NewStaleProcessor(snapshots, cfg.SyncInterval)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		amqpClient.SetLogger(logger)
	} else {
		logger.Info("AMQP_URL not set, relying on the periodic stale pass only")
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Stale processor stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		processed, failed := snapshots.Stats()
		logger.Info("Worker totals", "processed", processed, "failed", failed)
		if store.Close != nil {
			if err := store.Close(); err != nil {
				logger.Error("Storage cleanup error", log.FieldError, err)
			}
		}
	})

	if err := processor.Start(runCtx); err != nil {
		logger.Error("Failed to start stale processor", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeExpenseChanged(runCtx, snapshots.HandleMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped")
}
