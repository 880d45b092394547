package core

import "time"

// BalancePoint is one sample of a reconstructed balance series.
type BalancePoint struct {
	Date    time.Time
	Balance Money
}

// EntityKind distinguishes the two levels a dashboard can compare.
type EntityKind string

const (
	KindLibro EntityKind = "libro"
	KindConto EntityKind = "conto"
)

// Entity is one line of a multi-entity chart: a libro or a conto together
// with the conti whose balances it aggregates.
type Entity struct {
	ID             string
	Name           string
	Kind           EntityKind
	Conti          ContoSet
	InitialBalance Money
}

// EntitySeries is the monthly series for one entity. Color is assigned from
// the entity's position in the selection and stays fixed across renders.
type EntitySeries struct {
	EntityID   string
	EntityName string
	Kind       EntityKind
	Color      string
	Points     []BalancePoint
}

// Totals is the income/expense/net trio of a period.
type Totals struct {
	Income  Money
	Expense Money
	Net     Money
}
