package main

import (
	"context"
	"errors"
	"os"

	"haushaltsbuch/internal/amqp"
	"haushaltsbuch/internal/backend"
	"haushaltsbuch/internal/cli"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/sheets"
	gsheet "haushaltsbuch/internal/sheets/google"
	"haushaltsbuch/internal/worker"
)

const startupConcurrency = 4

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting mirror-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The mirror worker needs a shared backend (sqlite or postgres)")
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open storage backend", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	// ValidateMirror guarantees a spreadsheet, so events are never acked into
	// a sink that is discarded on exit.
	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		logger.Error("Failed to load Google credentials", log.FieldError, err)
		os.Exit(1)
	}
	var writer sheets.RowWriter
	writer, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, creds, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(store.Store, writer, logger)

	users, err := store.Store.ListUsers(ctx)
	if err != nil {
		logger.Error("Failed to list users for start-up mirror", log.FieldError, err)
	} else {
		owners := make([]int64, len(users))
		for i, u := range users {
			owners[i] = u.ID
		}
		if err := mirror.MirrorAll(ctx, owners, startupConcurrency); err != nil {
			logger.Error("Start-up mirror failed", log.FieldError, err)
		}
	}

	logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeLedgerEvents(ctx, mirror.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Mirror worker stopped")
}
