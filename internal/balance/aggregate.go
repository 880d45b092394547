package balance

import (
	"time"

	"saldi/internal/core"
)

// DefaultLookbackMonths is used when a caller asks for a non-positive lookback.
const DefaultLookbackMonths = 12

// DefaultPalette is the cyclic series palette.
var DefaultPalette = []string{
	"#2f6fde",
	"#e4572e",
	"#29bf12",
	"#a846a0",
	"#f3a712",
	"#17bebb",
	"#6c757d",
	"#d62246",
}

// MultiEntityHistory builds one monthly series per entity, oldest first.
//
// Each series is anchored at the entity's balance as of now and walked back
// month by month by subtracting the more recent month's net change. The
// current month is stamped at now, earlier months at their last day. Conto
// entities with no activity in the lookback window are left out; libro
// entities are always kept. Colors follow the entity's position in entities,
// so dropping an inactive conto does not shift the others.
func MultiEntityHistory(entities []core.Entity, txs []core.Transaction, now time.Time, months int, palette []string) []core.EntitySeries {
	if months <= 0 {
		months = DefaultLookbackMonths
	}
	if len(palette) == 0 {
		palette = DefaultPalette
	}

	current := core.StartOfMonth(now)
	windowStart := core.AddMonths(current, -(months - 1))

	out := make([]core.EntitySeries, 0, len(entities))
	for i, e := range entities {
		points, active := monthlySeries(e, txs, now, current, windowStart, months)
		if e.Kind == core.KindConto && !active {
			continue
		}
		out = append(out, core.EntitySeries{
			EntityID:   e.ID,
			EntityName: e.Name,
			Kind:       e.Kind,
			Color:      palette[i%len(palette)],
			Points:     points,
		})
	}
	return out
}

func monthlySeries(e core.Entity, txs []core.Transaction, now, current, windowStart time.Time, months int) ([]core.BalancePoint, bool) {
	loc := now.Location()
	today := e.InitialBalance
	deltas := make([]core.Money, months)
	active := false

	for _, t := range txs {
		if !Affects(t, e.Conti) || t.Date.After(now) {
			continue
		}
		d := Delta(t, e.Conti)
		today = today.Add(d)
		if t.Date.Before(windowStart) {
			continue
		}
		k := monthsBetween(core.StartOfMonth(t.Date.In(loc)), current)
		if k < 0 || k >= months {
			continue
		}
		deltas[k] = deltas[k].Add(d)
		active = true
	}

	newestFirst := make([]core.BalancePoint, months)
	b := today
	newestFirst[0] = core.BalancePoint{Date: now, Balance: b}
	for k := 1; k < months; k++ {
		b = b.Sub(deltas[k-1])
		newestFirst[k] = core.BalancePoint{
			Date:    core.LastDayOfMonth(core.AddMonths(current, -k)),
			Balance: b,
		}
	}

	points := make([]core.BalancePoint, months)
	for k := range newestFirst {
		points[months-1-k] = newestFirst[k]
	}
	return points, active
}

func monthsBetween(from, to time.Time) int {
	fy, fm, _ := from.Date()
	ty, tm, _ := to.Date()
	return (ty-fy)*12 + int(tm-fm)
}
