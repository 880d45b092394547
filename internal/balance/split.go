package balance

import (
	"time"

	"saldi/internal/core"
)

// SplitPastFuture partitions an ascending series at the end of now's day.
//
// Points dated before the first instant of tomorrow are past, so a point at
// exactly midnight today is past and one at midnight tomorrow is future.
// When past is non-empty the future series opens with a continuity point at
// now carrying the last past balance. With nothing scheduled and periodEnd
// after now, the future is a flat line from now to periodEnd.
func SplitPastFuture(points []core.BalancePoint, now, periodEnd time.Time) (past, future []core.BalancePoint) {
	boundary := core.EndOfDay(now)

	past = []core.BalancePoint{}
	var ahead []core.BalancePoint
	for _, p := range points {
		if p.Date.Before(boundary) {
			past = append(past, p)
		} else {
			ahead = append(ahead, p)
		}
	}

	if len(past) == 0 {
		future = make([]core.BalancePoint, len(ahead))
		copy(future, ahead)
		return past, future
	}

	last := past[len(past)-1]
	joint := now
	if last.Date.After(joint) {
		joint = last.Date
	}
	continuity := core.BalancePoint{Date: joint, Balance: last.Balance}

	switch {
	case len(ahead) > 0:
		future = make([]core.BalancePoint, 0, len(ahead)+1)
		future = append(future, continuity)
		future = append(future, ahead...)
	case periodEnd.After(joint):
		future = []core.BalancePoint{
			continuity,
			{Date: periodEnd, Balance: last.Balance},
		}
	default:
		future = []core.BalancePoint{}
	}
	return past, future
}
