package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income   TxType = "income"
	Expense  TxType = "expense"
	Transfer TxType = "transfer"
)

const (
	Checking   ContoType = "checking"
	Savings    ContoType = "savings"
	Credit     ContoType = "credit"
	Investment ContoType = "investment"
	Cash       ContoType = "cash"
)

type (
	TxType string

	ContoType string

	// Transaction is one ledger entry. Amount is a magnitude; the sign of its
	// contribution is derived from Type and from which side a conto sits on.
	Transaction struct {
		ID          string
		Date        time.Time
		Amount      Money
		Type        TxType
		FromContoID string // set for expense and transfer
		ToContoID   string // set for income and transfer
		CategoryID  string
		Description string
	}

	// Conto is a balance-holding sub-account of a Libro.
	Conto struct {
		ID             string
		LibroID        string
		Name           string
		Type           ContoType
		InitialBalance Money
		Active         bool
	}

	// Libro groups conti.
	Libro struct {
		ID   string
		Name string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMissingAmount    = errors.New("missing amount")
	ErrMissingDate      = errors.New("missing date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrMissingFrom      = errors.New("missing source conto")
	ErrMissingTo        = errors.New("missing destination conto")
	ErrSelfTransfer     = errors.New("transfer source and destination are the same conto")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidContoType = errors.New("invalid conto type")
)

// IsValid reports whether t is one of the known transaction types.
func (t TxType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

func (t ContoType) IsValid() bool {
	switch t {
	case Checking, Savings, Credit, Investment, Cash:
		return true
	default:
		return false
	}
}

// Validate checks the per-type invariants of a transaction.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.Amount == UnknownAmount {
		return ErrMissingAmount
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	switch t.Type {
	case Income:
		if strings.TrimSpace(t.ToContoID) == "" {
			return ErrMissingTo
		}
	case Expense:
		if strings.TrimSpace(t.FromContoID) == "" {
			return ErrMissingFrom
		}
	case Transfer:
		if strings.TrimSpace(t.FromContoID) == "" {
			return ErrMissingFrom
		}
		if strings.TrimSpace(t.ToContoID) == "" {
			return ErrMissingTo
		}
		if t.FromContoID == t.ToContoID {
			return ErrSelfTransfer
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	return nil
}

// Touches reports whether the transaction moves money in or out of conto id.
func (t Transaction) Touches(id string) bool {
	if id == "" {
		return false
	}
	return t.FromContoID == id || t.ToContoID == id
}

func (c Conto) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.IsValid() {
		return ErrInvalidContoType
	}
	return nil
}

// ContoSet is a set of conto ids used as the target of netting.
type ContoSet map[string]struct{}

// NewContoSet builds a set from ids, ignoring empty ones.
func NewContoSet(ids ...string) ContoSet {
	s := make(ContoSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

func (s ContoSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// IDs returns the members in unspecified order.
func (s ContoSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// InitialBalance sums the opening balances of conti that belong to s.
func InitialBalance(conti []Conto, s ContoSet) Money {
	var total Money
	for _, c := range conti {
		if s.Has(c.ID) {
			total = total.Add(c.InitialBalance)
		}
	}
	return total
}
