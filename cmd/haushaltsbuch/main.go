package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"haushaltsbuch/internal/amqp"
	"haushaltsbuch/internal/backend"
	"haushaltsbuch/internal/cache"
	"haushaltsbuch/internal/cli"
	apphttp "haushaltsbuch/internal/http"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	janitorInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open storage backend", log.FieldError, err, "backend", backendCfg.Type.String())
		os.Exit(1)
	}
	defer store.Close()

	categories, err := cfg.Categories()
	if err != nil {
		logger.Error("Failed to load categories", log.FieldError, err, "file", cfg.CategoriesFile)
		os.Exit(1)
	}

	// The publisher stays a nil interface when AMQP is off or unreachable.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without mirroring", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	ledger := services.NewLedgerService(store.Store, publisher, services.LedgerOptions{
		Categories:       categories,
		StrictCategories: cfg.StrictCategories,
	}, logger)
	users := services.NewUserService(store.Store, services.UserOptions{
		AdminEmail: cfg.AdminEmail,
		BcryptCost: cfg.BcryptCost,
	}, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger: ledger,
		Users:  users,
		Store:  store.Store,
		Logger: logger,
	}, apphttp.Options{
		SessionSecret:      []byte(cfg.SessionSecret),
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SecureCookies,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting haushaltsbuch server",
			"port", cfg.Port, "backend", backendCfg.Type.String(), "mirroring", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewJanitor(logger, srv.Cleaners()...).Run(gctx, janitorInterval)
	})
	g.Go(func() error {
		cli.GracefulShutdown(gctx, logger, shutdownTimeout, srv.Shutdown)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
