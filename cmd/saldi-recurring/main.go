package main

import (
	"errors"

	"saldi/internal/amqp"
	"saldi/internal/backend"
	"saldi/internal/cli"
	"saldi/internal/config"
	"saldi/internal/log"
	"saldi/internal/schedule"
	"saldi/internal/services"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentSchedule)
	if cfg.DataBackend != config.BackendSQLite {
		cli.Fatal(logger, "Recurring worker needs a shared ledger",
			errors.New("DATA_BACKEND must be sqlite"), log.FieldBackend, cfg.DataBackend)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	// Occurrences are written, not projected.
	result := cli.OpenBackend(ctx, cfg, logger, func(c *backend.Config) { c.ProjectionMonths = 0 })
	defer cli.Close(result, logger)
	if result.ReadOnly() || result.Recurrences == nil {
		logger.Error("Backend cannot store recurring transactions", log.FieldBackend, cfg.DataBackend)
		return
	}

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, dashboards will not be notified", log.FieldError, err.Error())
		} else {
			defer client.Close()
			publisher = client
		}
	}

	materializer := schedule.NewMaterializer(result.Recurrences, services.NewLedgerService(result.Writer, publisher, logger), logger)

	logger.Info("Starting recurring worker",
		log.FieldOperation, log.OpStartup,
		"interval", cfg.RecurringInterval.String(),
		"sqlite_db", cfg.SQLiteDBPath)
	materializer.Loop(ctx, cfg.RecurringInterval, nil)
	logger.Info("Recurring worker stopped", log.FieldOperation, log.OpShutdown)
}
