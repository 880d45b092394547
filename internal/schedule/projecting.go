package schedule

import (
	"context"
	"time"

	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// RecurrenceSource lists recurring templates.
type RecurrenceSource interface {
	ListRecurrences(ctx context.Context) ([]core.Recurrence, error)
}

// ProjectingStore decorates a ledger store so that fetches also return the
// scheduled occurrences dated after now, up to a horizon of whole months.
// Stored transactions win over projected ones with the same id.
type ProjectingStore struct {
	ledger.Store
	recs    RecurrenceSource
	horizon int
	now     func() time.Time
	logger  *log.Logger
}

func NewProjectingStore(store ledger.Store, recs RecurrenceSource, horizonMonths int, now func() time.Time, logger *log.Logger) *ProjectingStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ProjectingStore{
		Store:   store,
		recs:    recs,
		horizon: horizonMonths,
		now:     now,
		logger:  logger.WithComponent(log.ComponentSchedule),
	}
}

// Horizon is the last instant projections reach for a given now.
func (p *ProjectingStore) Horizon(now time.Time) time.Time {
	return core.EndOfMonth(core.AddMonths(core.StartOfMonth(now), p.horizon))
}

func (p *ProjectingStore) FetchTransactions(ctx context.Context, q ledger.Query) ([]core.Transaction, error) {
	if p.horizon <= 0 {
		return p.Store.FetchTransactions(ctx, q)
	}
	unpaged := q
	unpaged.Limit, unpaged.Offset = 0, 0

	stored, err := p.Store.FetchTransactions(ctx, unpaged)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	for _, t := range stored {
		seen[t.ID] = struct{}{}
	}
	merged := stored
	for _, t := range p.projected(ctx, q) {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		merged = append(merged, t)
	}
	return q.Apply(merged), nil
}

func (p *ProjectingStore) CountTransactions(ctx context.Context, q ledger.Query) (int, error) {
	if p.horizon <= 0 {
		return p.Store.CountTransactions(ctx, q)
	}
	q.Limit, q.Offset = 0, 0
	txs, err := p.FetchTransactions(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// projected lists matching occurrences. A failing recurrence source only
// costs the projection, never the stored ledger.
func (p *ProjectingStore) projected(ctx context.Context, q ledger.Query) []core.Transaction {
	now := p.now()
	until := p.Horizon(now)
	if !q.Range.To.IsZero() && q.Range.To.Before(until) {
		until = q.Range.To
	}
	if !until.After(now) {
		return nil
	}

	recs, err := p.recs.ListRecurrences(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Listing recurrences failed, skipping projection",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
		return nil
	}

	var out []core.Transaction
	for _, r := range recs {
		after := now
		if r.LastMaterialized.After(after) {
			after = r.LastMaterialized
		}
		occ, err := Project(r, after, until)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping recurrence",
				log.FieldRecurrence, r.ID, log.FieldError, err.Error())
			continue
		}
		for _, t := range occ {
			if q.Matches(t) {
				out = append(out, t)
			}
		}
	}
	return out
}
