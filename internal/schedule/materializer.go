package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// RecurrenceStore tracks how far each recurrence has been written.
type RecurrenceStore interface {
	RecurrenceSource
	SetLastMaterialized(ctx context.Context, id string, at time.Time) error
}

// Recorder writes one transaction to the ledger.
type Recorder interface {
	Record(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

// Materializer writes due occurrences of recurring templates into the ledger.
type Materializer struct {
	recs     RecurrenceStore
	recorder Recorder
	logger   *log.Logger
}

func NewMaterializer(recs RecurrenceStore, recorder Recorder, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Materializer{recs: recs, recorder: recorder, logger: logger.WithComponent(log.ComponentSchedule)}
}

// Run records every occurrence dated at or before now that is newer than the
// recurrence's last materialized date, then advances that date. Occurrences
// already in the ledger count as written. Any other failed write stops that
// recurrence so the next run retries from there.
func (m *Materializer) Run(ctx context.Context, now time.Time) (int, error) {
	recs, err := m.recs.ListRecurrences(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurrences: %w", err)
	}

	created := 0
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		occ, err := Project(r, r.LastMaterialized, now)
		if err != nil {
			m.logger.ErrorContext(ctx, "Invalid recurrence",
				log.FieldRecurrence, r.ID, log.FieldError, err.Error())
			continue
		}

		var last time.Time
		for _, t := range occ {
			_, err := m.recorder.Record(ctx, t)
			if errors.Is(err, ledger.ErrDuplicate) {
				last = t.Date
				continue
			}
			if err != nil {
				m.logger.ErrorContext(ctx, "Failed to record occurrence",
					append(log.NewFields().
						WithOperation(log.OpMaterialize).
						WithTransaction(t.ID, string(t.Type), t.Amount.Cents).
						WithError(err).ToSlice(), log.FieldRecurrence, r.ID)...)
				break
			}
			last = t.Date
			created++
		}
		if last.IsZero() {
			continue
		}
		if err := m.recs.SetLastMaterialized(ctx, r.ID, last); err != nil {
			m.logger.ErrorContext(ctx, "Failed to advance recurrence",
				log.FieldRecurrence, r.ID, log.FieldError, err.Error())
		}
	}

	m.logger.InfoContext(ctx, "Recurring materialization complete",
		log.FieldOperation, log.OpMaterialize, log.FieldCount, created, "recurrences", len(recs))
	return created, nil
}

// Loop runs m at start and then every interval until ctx is done.
func (m *Materializer) Loop(ctx context.Context, interval time.Duration, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	if _, err := m.Run(ctx, clock()); err != nil {
		m.logger.ErrorContext(ctx, "Initial materialization failed", log.FieldError, err.Error())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Run(ctx, clock()); err != nil {
				m.logger.ErrorContext(ctx, "Periodic materialization failed", log.FieldError, err.Error())
			}
		}
	}
}
