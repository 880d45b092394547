package balance

import (
	"time"

	"saldi/internal/core"
)

// Delta returns the signed contribution of t to the aggregate balance of s.
//
// Transfer sides are evaluated independently: a transfer between two members
// of s nets to zero, into s from outside adds the amount, out of s subtracts it.
func Delta(t core.Transaction, s core.ContoSet) core.Money {
	var d core.Money
	switch t.Type {
	case core.Income:
		if s.Has(t.ToContoID) {
			d = d.Add(t.Amount)
		}
	case core.Expense:
		if s.Has(t.FromContoID) {
			d = d.Sub(t.Amount)
		}
	case core.Transfer:
		if s.Has(t.FromContoID) {
			d = d.Sub(t.Amount)
		}
		if s.Has(t.ToContoID) {
			d = d.Add(t.Amount)
		}
	}
	return d
}

// Affects reports whether t is activity for s, even when its delta is zero.
func Affects(t core.Transaction, s core.ContoSet) bool {
	switch t.Type {
	case core.Income:
		return s.Has(t.ToContoID)
	case core.Expense:
		return s.Has(t.FromContoID)
	case core.Transfer:
		return s.Has(t.FromContoID) || s.Has(t.ToContoID)
	default:
		return false
	}
}

// BalanceAt is initial plus the deltas of every transaction dated at or
// before at.
func BalanceAt(s core.ContoSet, initial core.Money, txs []core.Transaction, at time.Time) core.Money {
	b := initial
	for _, t := range txs {
		if t.Date.After(at) {
			continue
		}
		b = b.Add(Delta(t, s))
	}
	return b
}
