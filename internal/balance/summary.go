package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"saldi/internal/core"
)

// MonthSummary is the totals of one calendar month. SavingsRate is invalid
// when the month had no income.
type MonthSummary struct {
	Month       time.Time
	Totals      core.Totals
	SavingsRate decimal.NullDecimal
}

// TrailingSummary compares a month with the N months before it.
type TrailingSummary struct {
	Current  MonthSummary
	Trailing []MonthSummary // oldest first

	AverageIncome  decimal.Decimal // euros
	AverageExpense decimal.Decimal
	AverageNet     decimal.Decimal
}

// Totals sums income into and expense out of s in [from, to). Transfers move
// money between conti and are not income or expense.
func Totals(s core.ContoSet, txs []core.Transaction, from, to time.Time) core.Totals {
	var tot core.Totals
	for _, t := range txs {
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		switch t.Type {
		case core.Income:
			if s.Has(t.ToContoID) {
				tot.Income = tot.Income.Add(t.Amount)
			}
		case core.Expense:
			if s.Has(t.FromContoID) {
				tot.Expense = tot.Expense.Add(t.Amount)
			}
		}
	}
	tot.Net = tot.Income.Sub(tot.Expense)
	return tot
}

// SummarizeMonth returns the totals of the month containing month.
func SummarizeMonth(s core.ContoSet, txs []core.Transaction, month time.Time) MonthSummary {
	start := core.StartOfMonth(month)
	tot := Totals(s, txs, start, core.AddMonths(start, 1))
	return MonthSummary{
		Month:       start,
		Totals:      tot,
		SavingsRate: SavingsRate(tot),
	}
}

// SummarizeTrailing summarizes month and each of the n months before it.
// Months without transactions count as zero in the averages.
func SummarizeTrailing(s core.ContoSet, txs []core.Transaction, month time.Time, n int) TrailingSummary {
	start := core.StartOfMonth(month)
	res := TrailingSummary{
		Current:        SummarizeMonth(s, txs, start),
		Trailing:       []MonthSummary{},
		AverageIncome:  decimal.Zero,
		AverageExpense: decimal.Zero,
		AverageNet:     decimal.Zero,
	}
	if n <= 0 {
		return res
	}

	var income, expense core.Money
	for k := n; k >= 1; k-- {
		ms := SummarizeMonth(s, txs, core.AddMonths(start, -k))
		income = income.Add(ms.Totals.Income)
		expense = expense.Add(ms.Totals.Expense)
		res.Trailing = append(res.Trailing, ms)
	}

	count := decimal.NewFromInt(int64(n))
	res.AverageIncome = income.Decimal().DivRound(count, 2)
	res.AverageExpense = expense.Decimal().DivRound(count, 2)
	res.AverageNet = income.Sub(expense).Decimal().DivRound(count, 2)
	return res
}

// SavingsRate is (income - expense) / income * 100, rounded to two places.
// It is invalid, not zero, when income is zero.
func SavingsRate(t core.Totals) decimal.NullDecimal {
	if t.Income.Cents <= 0 {
		return decimal.NullDecimal{}
	}
	rate := decimal.NewFromInt(t.Income.Cents - t.Expense.Cents).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(t.Income.Cents), 2)
	return decimal.NewNullDecimal(rate)
}
