package ledger

import (
	"context"
	"sync/atomic"

	"saldi/internal/core"
	"saldi/internal/log"
)

// Stats counts what the accessor had to hide from its callers.
type Stats struct {
	Rejected int64 // records dropped by validation
	Failures int64 // store calls that failed and were replaced by empty results
}

// Accessor is the read side used by the dashboard. It never fails: a store
// error yields an empty result, and invalid records are dropped, logged and
// counted instead of contributing a silent zero.
type Accessor struct {
	store  Store
	logger *log.Logger

	rejected atomic.Int64
	failures atomic.Int64
}

func NewAccessor(store Store, logger *log.Logger) *Accessor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Accessor{store: store, logger: logger.WithComponent(log.ComponentLedger)}
}

// Fetch returns the valid transactions in r touching any of contoIDs, in
// the requested date order.
func (a *Accessor) Fetch(ctx context.Context, r Range, contoIDs []string, order Sort) []core.Transaction {
	return a.Query(ctx, Query{Range: r, ContoIDs: contoIDs, Sort: order})
}

// Query is Fetch with the full predicate.
func (a *Accessor) Query(ctx context.Context, q Query) []core.Transaction {
	txs, err := a.store.FetchTransactions(ctx, q)
	if err != nil {
		a.failures.Add(1)
		a.logger.ErrorContext(ctx, "Ledger fetch failed, using empty result",
			log.NewFields().WithOperation(log.OpRead).WithConti(q.ContoIDs).WithError(err).ToSlice()...)
		return []core.Transaction{}
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			a.rejected.Add(1)
			a.logger.WarnContext(ctx, "Rejected invalid transaction",
				log.NewFields().
					WithOperation(log.OpValidate).
					WithTransaction(t.ID, string(t.Type), t.Amount.Cents).
					WithError(err).ToSlice()...)
			continue
		}
		out = append(out, t)
	}
	SortTransactions(out, q.Sort)
	return out
}

// Page applies q's limit and offset after validation, so pages are never
// short because of rejected records. total counts the valid matches.
func (a *Accessor) Page(ctx context.Context, q Query) (page []core.Transaction, total int) {
	limit, offset := q.Limit, q.Offset
	q.Limit, q.Offset = 0, 0
	valid := a.Query(ctx, q)

	total = len(valid)
	if offset >= total {
		return []core.Transaction{}, total
	}
	valid = valid[offset:]
	if limit > 0 && limit < len(valid) {
		valid = valid[:limit]
	}
	return valid, total
}

// Count returns the number of matching records, or 0 when the store fails.
func (a *Accessor) Count(ctx context.Context, q Query) int {
	n, err := a.store.CountTransactions(ctx, q)
	if err != nil {
		a.failures.Add(1)
		a.logger.ErrorContext(ctx, "Ledger count failed",
			log.NewFields().WithOperation(log.OpCount).WithError(err).ToSlice()...)
		return 0
	}
	return n
}

// Conti lists all conti, or none when the store fails.
func (a *Accessor) Conti(ctx context.Context) []core.Conto {
	conti, err := a.store.ListConti(ctx)
	if err != nil {
		a.failures.Add(1)
		a.logger.ErrorContext(ctx, "Listing conti failed",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
		return []core.Conto{}
	}
	return conti
}

// Libri lists all libri, or none when the store fails.
func (a *Accessor) Libri(ctx context.Context) []core.Libro {
	libri, err := a.store.ListLibri(ctx)
	if err != nil {
		a.failures.Add(1)
		a.logger.ErrorContext(ctx, "Listing libri failed",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
		return []core.Libro{}
	}
	return libri
}

func (a *Accessor) Stats() Stats {
	return Stats{
		Rejected: a.rejected.Load(),
		Failures: a.failures.Load(),
	}
}
