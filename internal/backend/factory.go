package backend

import (
	"context"
	"fmt"
	"time"

	"saldi/internal/cache"
	"saldi/internal/ledger"
	"saldi/internal/ledger/memory"
	"saldi/internal/log"
	"saldi/internal/schedule"
	"saldi/internal/sheets"
	"saldi/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if res.Recurrences != nil && config.ProjectionMonths > 0 {
		res.Store = schedule.NewProjectingStore(res.Store, res.Recurrences, config.ProjectionMonths, config.Now, f.logger)
	}
	if res.Ready == nil {
		res.Ready = func(context.Context) error { return nil }
	}
	if res.Cleanup == nil {
		res.Cleanup = func() error { return nil }
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath, config.Location, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	if config.SeedFile != "" {
		seed, err := memory.NewFromFile(config.SeedFile, config.Location)
		if err != nil {
			store.Close()
			return nil, err
		}
		n, err := store.Seed(ctx, seed)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("seed sqlite store: %w", err)
		}
		if n > 0 {
			f.logger.Info("Seeded empty database", "seed_file", config.SeedFile, log.FieldCount, n)
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:       store,
		Writer:      store,
		Recurrences: store,
		Ready:       store.Ping,
		Cleanup:     store.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := sheets.LoadCredentials(config.GoogleServiceAccountJSON, config.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	store, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:  config.GoogleSpreadsheetID,
		ContiSheet:     config.GoogleContiSheet,
		MovimentiSheet: config.GoogleMovimentiSheet,
		Location:       config.Location,
		CacheTTL:       config.GoogleSheetsCacheTTL,
	}, creds, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "read_only", true)

	return &BackendResult{
		Store:    store,
		Cleaners: []cache.Cleaner{store.Values()},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var store *memory.Store
	if config.SeedFile != "" {
		var err error
		store, err = memory.NewFromFile(config.SeedFile, config.Location)
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.New(nil, nil, nil)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Store:       store,
		Writer:      store,
		Recurrences: store,
	}, nil
}

var (
	_ ledger.ReadWriter        = (*memory.Store)(nil)
	_ schedule.RecurrenceStore = (*memory.Store)(nil)
	_ ledger.ReadWriter        = (*storage.Store)(nil)
	_ schedule.RecurrenceStore = (*storage.Store)(nil)
)
