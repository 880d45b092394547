package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is how often a recurrence repeats.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEndBeforeStart   = errors.New("end date before start date")
)

// Recurrence is a template for a transaction that repeats on a schedule.
// Occurrences up to LastMaterialized have already been written to the ledger.
type Recurrence struct {
	ID               string
	Type             TxType
	Amount           Money
	FromContoID      string
	ToContoID        string
	CategoryID       string
	Description      string
	Start            time.Time
	End              time.Time // zero means open-ended
	Every            Frequency
	LastMaterialized time.Time
}

// Template returns the transaction every occurrence is stamped from.
func (r Recurrence) Template() Transaction {
	return Transaction{
		Amount:      r.Amount,
		Type:        r.Type,
		FromContoID: r.FromContoID,
		ToContoID:   r.ToContoID,
		CategoryID:  r.CategoryID,
		Description: r.Description,
	}
}

func (r Recurrence) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("missing recurrence id")
	}
	if r.Start.IsZero() {
		return ErrMissingDate
	}
	if !r.End.IsZero() && r.End.Before(r.Start) {
		return ErrEndBeforeStart
	}
	switch r.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Every)
	}
	t := r.Template()
	t.Date = r.Start
	return t.Validate()
}
