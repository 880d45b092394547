package schedule

import (
	"time"

	"github.com/google/uuid"

	"saldi/internal/core"
)

// maxOccurrences bounds a single projection.
const maxOccurrences = 10000

var occurrenceNamespace = uuid.MustParse("6f1c9a52-3d7e-4b8a-9c41-2e5b7d0f8a13")

// OccurrenceID is the id of r's occurrence on date. It is the same whether
// the occurrence is projected or materialized, so the two never double count.
func OccurrenceID(recurrenceID string, date time.Time) string {
	key := recurrenceID + "|" + date.Format("2006-01-02")
	return uuid.NewSHA1(occurrenceNamespace, []byte(key)).String()
}

// Project lists the occurrences of r dated after after and at or before
// until, never past r.End.
func Project(r core.Recurrence, after, until time.Time) ([]core.Transaction, error) {
	step, err := GetStepper(r.Every)
	if err != nil {
		return nil, err
	}
	if !r.End.IsZero() && r.End.Before(until) {
		until = r.End
	}

	var out []core.Transaction
	for n := 0; n < maxOccurrences; n++ {
		date := step.Occurrence(r.Start, n)
		if date.After(until) {
			break
		}
		if !date.After(after) {
			continue
		}
		t := r.Template()
		t.ID = OccurrenceID(r.ID, date)
		t.Date = date
		out = append(out, t)
	}
	return out, nil
}
