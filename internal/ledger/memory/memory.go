// Package memory is an in-process ledger store, seeded from a JSON file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"saldi/internal/core"
	"saldi/internal/ledger"
)

type Store struct {
	mu    sync.RWMutex
	libri []core.Libro
	conti []core.Conto
	txs   []core.Transaction
	recs  []core.Recurrence
}

func New(libri []core.Libro, conti []core.Conto, txs []core.Transaction) *Store {
	return &Store{
		libri: append([]core.Libro(nil), libri...),
		conti: append([]core.Conto(nil), conti...),
		txs:   append([]core.Transaction(nil), txs...),
	}
}

// FetchTransactions returns the matching records as stored. Validation is
// the accessor's job, so invalid seed rows are returned too.
func (s *Store) FetchTransactions(_ context.Context, q ledger.Query) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return q.Apply(s.txs), nil
}

func (s *Store) CountTransactions(_ context.Context, q ledger.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.txs {
		if q.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListConti(_ context.Context) ([]core.Conto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Conto(nil), s.conti...), nil
}

func (s *Store) ListLibri(_ context.Context) ([]core.Libro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Libro(nil), s.libri...), nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.txs {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %s: %w", t.ID, ledger.ErrDuplicate)
		}
	}
	s.txs = append(s.txs, t)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
}

// AddRecurrence stores a recurring template.
func (s *Store) AddRecurrence(r core.Recurrence) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, r)
	return nil
}

func (s *Store) ListRecurrences(_ context.Context) ([]core.Recurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Recurrence(nil), s.recs...), nil
}

func (s *Store) SetLastMaterialized(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recs {
		if s.recs[i].ID == id {
			s.recs[i].LastMaterialized = at
			return nil
		}
	}
	return fmt.Errorf("recurrence %s: %w", id, ledger.ErrNotFound)
}

type seedFile struct {
	Libri []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"libri"`
	Conti []struct {
		ID             string `json:"id"`
		LibroID        string `json:"libro_id"`
		Name           string `json:"name"`
		Type           string `json:"type"`
		InitialBalance string `json:"initial_balance"`
		Active         *bool  `json:"active"`
	} `json:"conti"`
	Transazioni []struct {
		ID          string `json:"id"`
		Date        string `json:"date"`
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		From        string `json:"from"`
		To          string `json:"to"`
		Category    string `json:"category"`
		Description string `json:"description"`
	} `json:"transazioni"`
	Ricorrenze []struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		Amount      string `json:"amount"`
		From        string `json:"from"`
		To          string `json:"to"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Start       string `json:"start"`
		End         string `json:"end"`
		Every       string `json:"every"`
	} `json:"ricorrenze"`
}

// NewFromFile loads a JSON seed. Dates without a zone are read in loc.
// Transactions with a missing or malformed date or amount are kept, with a
// zero date or core.UnknownAmount, so the accessor rejects and counts them.
func NewFromFile(path string, loc *time.Location) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Store{}
	for _, l := range seed.Libri {
		s.libri = append(s.libri, core.Libro{ID: l.ID, Name: l.Name})
	}
	for _, c := range seed.Conti {
		var initial int64
		if strings.TrimSpace(c.InitialBalance) != "" {
			initial, err = core.ParseSignedCents(c.InitialBalance)
			if err != nil {
				return nil, fmt.Errorf("conto %s initial balance: %w", c.ID, err)
			}
		}
		conto := core.Conto{
			ID:             c.ID,
			LibroID:        c.LibroID,
			Name:           c.Name,
			Type:           core.ContoType(c.Type),
			InitialBalance: core.Cents(initial),
			Active:         c.Active == nil || *c.Active,
		}
		if err := conto.Validate(); err != nil {
			return nil, fmt.Errorf("conto %s: %w", c.ID, err)
		}
		s.conti = append(s.conti, conto)
	}
	for _, t := range seed.Transazioni {
		date, _ := core.ParseDate(t.Date, loc)
		amount := core.UnknownAmount
		if cents, err := core.ParseDecimalToCents(t.Amount); err == nil {
			amount = core.Cents(cents)
		}
		s.txs = append(s.txs, core.Transaction{
			ID:          t.ID,
			Date:        date,
			Amount:      amount,
			Type:        core.TxType(t.Type),
			FromContoID: t.From,
			ToContoID:   t.To,
			CategoryID:  t.Category,
			Description: t.Description,
		})
	}
	for _, r := range seed.Ricorrenze {
		start, err := core.ParseDate(r.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("recurrence %s start: %w", r.ID, err)
		}
		var end time.Time
		if strings.TrimSpace(r.End) != "" {
			if end, err = core.ParseDate(r.End, loc); err != nil {
				return nil, fmt.Errorf("recurrence %s end: %w", r.ID, err)
			}
		}
		cents, err := core.ParseDecimalToCents(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("recurrence %s amount: %w", r.ID, err)
		}
		rec := core.Recurrence{
			ID:          r.ID,
			Type:        core.TxType(r.Type),
			Amount:      core.Cents(cents),
			FromContoID: r.From,
			ToContoID:   r.To,
			CategoryID:  r.Category,
			Description: r.Description,
			Start:       start,
			End:         end,
			Every:       core.Frequency(r.Every),
		}
		if err := s.AddRecurrence(rec); err != nil {
			return nil, fmt.Errorf("recurrence %s: %w", r.ID, err)
		}
	}
	return s, nil
}
