package http

import (
	"time"

	"github.com/shopspring/decimal"

	"saldi/internal/balance"
	"saldi/internal/core"
	"saldi/internal/dashboard"
)

// Wire shapes of the JSON API. Amounts are integer cents.
type (
	pointDTO struct {
		Date         string `json:"date"`
		BalanceCents int64  `json:"balance_cents"`
	}

	historyDTO struct {
		View         string     `json:"view,omitempty"`
		Generation   uint64     `json:"generation"`
		Period       string     `json:"period"`
		Start        string     `json:"start"`
		End          string     `json:"end"`
		Conti        []string   `json:"conti"`
		BalanceCents int64      `json:"balance_cents"`
		Points       []pointDTO `json:"points"`
		Past         []pointDTO `json:"past"`
		Future       []pointDTO `json:"future"`
	}

	seriesDTO struct {
		ID     string     `json:"id"`
		Name   string     `json:"name"`
		Kind   string     `json:"kind"`
		Color  string     `json:"color"`
		Points []pointDTO `json:"points"`
	}

	multiHistoryDTO struct {
		View       string      `json:"view,omitempty"`
		Generation uint64      `json:"generation"`
		Months     int         `json:"months"`
		Series     []seriesDTO `json:"series"`
	}

	monthSummaryDTO struct {
		Month        string              `json:"month"`
		IncomeCents  int64               `json:"income_cents"`
		ExpenseCents int64               `json:"expense_cents"`
		NetCents     int64               `json:"net_cents"`
		SavingsRate  decimal.NullDecimal `json:"savings_rate"`
	}

	summaryDTO struct {
		View                string            `json:"view,omitempty"`
		Generation          uint64            `json:"generation"`
		Current             monthSummaryDTO   `json:"current"`
		Trailing            []monthSummaryDTO `json:"trailing"`
		AverageIncomeCents  int64             `json:"average_income_cents"`
		AverageExpenseCents int64             `json:"average_expense_cents"`
		AverageNetCents     int64             `json:"average_net_cents"`
	}

	transactionDTO struct {
		ID          string `json:"id"`
		Date        string `json:"date"`
		Type        string `json:"type"`
		AmountCents int64  `json:"amount_cents"`
		From        string `json:"from,omitempty"`
		To          string `json:"to,omitempty"`
		Category    string `json:"category,omitempty"`
		Description string `json:"description,omitempty"`
	}

	recentDTO struct {
		View         string           `json:"view,omitempty"`
		Generation   uint64           `json:"generation"`
		Total        int              `json:"total"`
		Limit        int              `json:"limit"`
		Offset       int              `json:"offset"`
		Transactions []transactionDTO `json:"transactions"`
	}

	contoDTO struct {
		ID                  string `json:"id"`
		LibroID             string `json:"libro_id"`
		Name                string `json:"name"`
		Type                string `json:"type"`
		InitialBalanceCents int64  `json:"initial_balance_cents"`
		BalanceCents        int64  `json:"balance_cents"`
		Active              bool   `json:"active"`
	}

	libroDTO struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		BalanceCents int64  `json:"balance_cents"`
		Conti        int    `json:"conti"`
	}
)

func toPoints(points []core.BalancePoint) []pointDTO {
	out := make([]pointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, pointDTO{Date: formatDate(p.Date), BalanceCents: p.Balance.Cents})
	}
	return out
}

func toHistoryDTO(view string, v dashboard.HistoryView) historyDTO {
	conti := v.Conti
	if conti == nil {
		conti = []string{}
	}
	return historyDTO{
		View:         view,
		Generation:   v.Generation,
		Period:       string(v.Period),
		Start:        formatDate(v.Start),
		End:          formatDate(v.End),
		Conti:        conti,
		BalanceCents: v.Balance.Cents,
		Points:       toPoints(v.Points),
		Past:         toPoints(v.Past),
		Future:       toPoints(v.Future),
	}
}

func toMultiHistoryDTO(view string, v dashboard.MultiHistoryView) multiHistoryDTO {
	series := make([]seriesDTO, 0, len(v.Series))
	for _, s := range v.Series {
		series = append(series, seriesDTO{
			ID:     s.EntityID,
			Name:   s.EntityName,
			Kind:   string(s.Kind),
			Color:  s.Color,
			Points: toPoints(s.Points),
		})
	}
	return multiHistoryDTO{View: view, Generation: v.Generation, Months: v.Months, Series: series}
}

func toMonthSummaryDTO(m balance.MonthSummary) monthSummaryDTO {
	return monthSummaryDTO{
		Month:        formatMonth(m.Month),
		IncomeCents:  m.Totals.Income.Cents,
		ExpenseCents: m.Totals.Expense.Cents,
		NetCents:     m.Totals.Net.Cents,
		SavingsRate:  m.SavingsRate,
	}
}

// eurosToCents rounds a euro decimal half away from zero.
func eurosToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func toSummaryDTO(view string, v dashboard.SummaryView) summaryDTO {
	trailing := make([]monthSummaryDTO, 0, len(v.Trailing))
	for _, m := range v.Trailing {
		trailing = append(trailing, toMonthSummaryDTO(m))
	}
	return summaryDTO{
		View:                view,
		Generation:          v.Generation,
		Current:             toMonthSummaryDTO(v.Current),
		Trailing:            trailing,
		AverageIncomeCents:  eurosToCents(v.AverageIncome),
		AverageExpenseCents: eurosToCents(v.AverageExpense),
		AverageNetCents:     eurosToCents(v.AverageNet),
	}
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Date:        t.Date.Format(time.RFC3339),
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		From:        t.FromContoID,
		To:          t.ToContoID,
		Category:    t.CategoryID,
		Description: t.Description,
	}
}

func toRecentDTO(view string, v dashboard.RecentView, limit, offset int) recentDTO {
	txs := make([]transactionDTO, 0, len(v.Transactions))
	for _, t := range v.Transactions {
		txs = append(txs, toTransactionDTO(t))
	}
	return recentDTO{
		View:         view,
		Generation:   v.Generation,
		Total:        v.Total,
		Limit:        limit,
		Offset:       offset,
		Transactions: txs,
	}
}

func toContiDTO(conti []dashboard.ContoBalance) []contoDTO {
	out := make([]contoDTO, 0, len(conti))
	for _, k := range conti {
		out = append(out, contoDTO{
			ID:                  k.ID,
			LibroID:             k.LibroID,
			Name:                k.Name,
			Type:                string(k.Type),
			InitialBalanceCents: k.InitialBalance.Cents,
			BalanceCents:        k.Balance.Cents,
			Active:              k.Active,
		})
	}
	return out
}

func toLibriDTO(libri []dashboard.LibroBalance) []libroDTO {
	out := make([]libroDTO, 0, len(libri))
	for _, l := range libri {
		out = append(out, libroDTO{ID: l.ID, Name: l.Name, BalanceCents: l.Balance.Cents, Conti: l.Conti})
	}
	return out
}
