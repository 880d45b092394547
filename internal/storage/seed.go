package storage

import (
	"context"
	"fmt"

	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// SeedSource is anything that can hand over a complete ledger, such as the
// memory store loaded from a seed file.
type SeedSource interface {
	ledger.Store
	ListRecurrences(ctx context.Context) ([]core.Recurrence, error)
}

// Seed copies src into an empty database. It does nothing when conti
// already exist. Invalid transactions are skipped and logged.
func (s *Store) Seed(ctx context.Context, src SeedSource) (int, error) {
	var existing int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conti").Scan(&existing); err != nil {
		return 0, fmt.Errorf("count conti: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	libri, err := src.ListLibri(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed libri: %w", err)
	}
	for _, l := range libri {
		if err := s.UpsertLibro(ctx, l); err != nil {
			return 0, err
		}
	}
	conti, err := src.ListConti(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed conti: %w", err)
	}
	for _, c := range conti {
		if err := s.UpsertConto(ctx, c); err != nil {
			return 0, err
		}
	}

	txs, err := src.FetchTransactions(ctx, ledger.Query{})
	if err != nil {
		return 0, fmt.Errorf("seed transactions: %w", err)
	}
	inserted := 0
	for _, t := range txs {
		if err := s.InsertTransaction(ctx, t); err != nil {
			s.logger.WarnContext(ctx, "Skipping seed transaction",
				log.NewFields().WithOperation(log.OpCreate).WithTransaction(t.ID, string(t.Type), t.Amount.Cents).WithError(err).ToSlice()...)
			continue
		}
		inserted++
	}

	recs, err := src.ListRecurrences(ctx)
	if err != nil {
		return inserted, fmt.Errorf("seed recurrences: %w", err)
	}
	for _, r := range recs {
		if err := s.InsertRecurrence(ctx, r); err != nil {
			return inserted, err
		}
	}

	s.logger.InfoContext(ctx, "Database seeded",
		"libri", len(libri), "conti", len(conti), log.FieldCount, inserted, "recurrences", len(recs))
	return inserted, nil
}
