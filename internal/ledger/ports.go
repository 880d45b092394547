// Package ledger defines how the dashboard reads the transaction log.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"saldi/internal/core"
)

var (
	// ErrNotFound is returned by writers when an id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when inserting an id that is already stored.
	ErrDuplicate = errors.New("already exists")
)

// Sort is the date order of a fetch.
type Sort string

const (
	Ascending  Sort = "asc"
	Descending Sort = "desc"
)

// Range is an inclusive date window. A zero bound is unbounded on that side,
// so a zero To includes scheduled transactions in the same call.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Query is the predicate shared by fetch and count.
type Query struct {
	Range       Range
	ContoIDs    []string // matches FromContoID or ToContoID; empty means all
	Types       []core.TxType
	CategoryIDs []string
	Sort        Sort
	Limit       int // 0 means no limit
	Offset      int
}

// Matches applies the query filters, ignoring sort and paging.
func (q Query) Matches(t core.Transaction) bool {
	if !q.Range.Contains(t.Date) {
		return false
	}
	if len(q.ContoIDs) > 0 && !slices.ContainsFunc(q.ContoIDs, t.Touches) {
		return false
	}
	if len(q.Types) > 0 && !slices.Contains(q.Types, t.Type) {
		return false
	}
	if len(q.CategoryIDs) > 0 && !slices.Contains(q.CategoryIDs, t.CategoryID) {
		return false
	}
	return true
}

// Apply filters, sorts and pages txs in memory. Stores without a query
// language use it to honor a Query.
func (q Query) Apply(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	SortTransactions(out, q.Sort)
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []core.Transaction{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// SortTransactions orders by date, then id for a stable result. Anything
// other than Descending sorts ascending.
func SortTransactions(txs []core.Transaction, order Sort) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			if order == Descending {
				return a.Date.After(b.Date)
			}
			return a.Date.Before(b.Date)
		}
		if order == Descending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

// Store is the persistence collaborator the dashboard reads from.
type Store interface {
	FetchTransactions(ctx context.Context, q Query) ([]core.Transaction, error)
	CountTransactions(ctx context.Context, q Query) (int, error)
	ListConti(ctx context.Context) ([]core.Conto, error)
	ListLibri(ctx context.Context) ([]core.Libro, error)
}

// Writer stores and removes ledger entries.
type Writer interface {
	InsertTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) (core.Transaction, error)
}

// ReadWriter is a store that accepts writes.
type ReadWriter interface {
	Store
	Writer
}
