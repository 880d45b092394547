package balance

import (
	"sort"
	"time"

	"saldi/internal/core"
)

// History reconstructs the balance of s over [start, end].
//
// txs must include the history before start; only its net matters. The
// result starts with (start, balance before start), has one closing-balance
// point per day with activity and one anchor on the last day of every month
// touched by the window that has no point of its own. Points are ascending.
// Calendar days are taken in start's location.
func History(s core.ContoSet, initial core.Money, start, end time.Time, txs []core.Transaction) []core.BalancePoint {
	if start.After(end) {
		return []core.BalancePoint{}
	}
	loc := start.Location()

	before := initial
	byDay := make(map[time.Time]core.Money)
	for _, t := range txs {
		if !Affects(t, s) {
			continue
		}
		d := Delta(t, s)
		switch {
		case t.Date.Before(start):
			before = before.Add(d)
		case t.Date.After(end):
		default:
			key := core.StartOfDay(t.Date.In(loc))
			byDay[key] = byDay[key].Add(d)
		}
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]core.BalancePoint, 0, len(days)+2)
	points = append(points, core.BalancePoint{Date: start, Balance: before})

	closing := make([]core.Money, len(days))
	running := before
	for i, day := range days {
		running = running.Add(byDay[day])
		closing[i] = running
		date := day
		if date.Before(start) {
			date = start
		}
		points = append(points, core.BalancePoint{Date: date, Balance: running})
	}

	covered := make(map[time.Time]struct{}, len(points))
	for _, p := range points {
		covered[core.StartOfDay(p.Date.In(loc))] = struct{}{}
	}

	for m := core.StartOfMonth(start); !m.After(end); m = core.AddMonths(m, 1) {
		anchor := core.LastDayOfMonth(m)
		if anchor.After(end) {
			anchor = end
		}
		if anchor.Before(start) {
			anchor = start
		}
		key := core.StartOfDay(anchor)
		if _, ok := covered[key]; ok {
			continue
		}
		covered[key] = struct{}{}
		points = append(points, core.BalancePoint{
			Date:    anchor,
			Balance: closingAsOf(days, closing, before, key),
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// closingAsOf returns the closing balance of the last activity day on or
// before day, or before when there is none.
func closingAsOf(days []time.Time, closing []core.Money, before core.Money, day time.Time) core.Money {
	i := sort.Search(len(days), func(i int) bool { return days[i].After(day) })
	if i == 0 {
		return before
	}
	return closing[i-1]
}
