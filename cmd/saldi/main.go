package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"saldi/internal/amqp"
	"saldi/internal/cache"
	"saldi/internal/cli"
	"saldi/internal/dashboard"
	apphttp "saldi/internal/http"
	"saldi/internal/ledger"
	"saldi/internal/log"
	"saldi/internal/services"
)

const (
	cacheSweepInterval = time.Minute
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, logger := cli.Setup(log.ComponentApp)
	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Failed to load timezone", err, "timezone", cfg.Timezone)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.OpenBackend(ctx, cfg, logger, nil)
	defer cli.Close(result, logger)

	caches := cache.NewManager(logger)
	catalog := cache.NewLRUCache[dashboard.Catalog](1, cfg.CatalogCacheTTL)
	caches.Register(catalog)
	for _, c := range result.Cleaners {
		caches.Register(c)
	}
	caches.StartCleanup(cacheSweepInterval)
	defer caches.Stop()

	dash := dashboard.NewService(ledger.NewAccessor(result.Store, logger), catalog, dashboard.Options{
		Location:       loc,
		LookbackMonths: cfg.DefaultLookbackMonths,
		Logger:         logger,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, changes stay in-process", log.FieldError, err.Error())
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			go func() {
				err := amqpClient.Consume(ctx, func(ctx context.Context, _ *amqp.LedgerChangedMessage) error {
					dash.Invalidate(ctx)
					return nil
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Ledger change consumer stopped", log.FieldError, err.Error())
				}
			}()
		}
	}

	var ledgerService *services.LedgerService
	if !result.ReadOnly() {
		var publisher services.Publisher
		if amqpClient != nil {
			publisher = amqpClient
		}
		ledgerService = services.NewLedgerService(result.Writer, publisher, logger)
		ledgerService.OnChange(func(ctx context.Context, _ *amqp.LedgerChangedMessage) {
			dash.Invalidate(ctx)
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard: dash,
		Ledger:    ledgerService,
		Ready:     result.Ready,
		Location:  loc,
		Logger:    logger,
	})

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	}()

	logger.Info("Starting saldi server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"read_only", result.ReadOnly(),
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
