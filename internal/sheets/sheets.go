// Package sheets reads a ledger kept in a Google spreadsheet: one sheet of
// conti and one of movimenti, each with a header row.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldi/internal/cache"
	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// Config locates the spreadsheet and its sheets.
type Config struct {
	SpreadsheetID  string
	ContiSheet     string
	MovimentiSheet string
	Location       *time.Location
	CacheTTL       time.Duration
}

// valuesGetter reads a range as a matrix of cells.
type valuesGetter func(ctx context.Context, rng string) ([][]any, error)

// Store is a read-only ledger.Store over a spreadsheet.
type Store struct {
	get    valuesGetter
	cfg    Config
	values *cache.LRUCache[[][]any]
	logger *log.Logger
}

var _ ledger.Store = (*Store)(nil)

// New creates a Store authenticated with service account credentials.
func New(ctx context.Context, cfg Config, credentialsJSON []byte, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	get := func(ctx context.Context, rng string) ([][]any, error) {
		resp, err := svc.Spreadsheets.Values.Get(cfg.SpreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
	return newStore(get, cfg, logger), nil
}

// LoadCredentials returns inline JSON when set, otherwise the file content.
func LoadCredentials(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if file == "" {
		return nil, errors.New("missing service account credentials")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func newStore(get valuesGetter, cfg Config, logger *log.Logger) *Store {
	if cfg.ContiSheet == "" {
		cfg.ContiSheet = "Conti"
	}
	if cfg.MovimentiSheet == "" {
		cfg.MovimentiSheet = "Movimenti"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		get:    get,
		cfg:    cfg,
		values: cache.NewLRUCache[[][]any](4, cfg.CacheTTL),
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// Values exposes the range cache so a cache.Manager can sweep it.
func (s *Store) Values() cache.Cleaner {
	return s.values
}

// Refresh drops cached ranges so the next read hits the API.
func (s *Store) Refresh() {
	s.values.Purge()
}

func (s *Store) read(ctx context.Context, sheet string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:H", sheet)
	if v, ok := s.values.Get(rng); ok {
		return v, nil
	}
	start := time.Now()
	v, err := s.get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	s.logger.DebugContext(ctx, "Read sheet range",
		"range", rng,
		log.FieldCount, len(v),
		log.FieldDuration, time.Since(start).Milliseconds())
	s.values.Set(rng, v)
	return v, nil
}

func (s *Store) transactions(ctx context.Context) ([]core.Transaction, error) {
	values, err := s.read(ctx, s.cfg.MovimentiSheet)
	if err != nil {
		return nil, err
	}
	return parseMovimenti(values, s.cfg.MovimentiSheet, s.cfg.Location)
}

// FetchTransactions returns matching rows. Unreadable dates and amounts are
// passed on as zero values for the accessor to reject.
func (s *Store) FetchTransactions(ctx context.Context, q ledger.Query) ([]core.Transaction, error) {
	txs, err := s.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(txs), nil
}

func (s *Store) CountTransactions(ctx context.Context, q ledger.Query) (int, error) {
	txs, err := s.transactions(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range txs {
		if q.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListConti(ctx context.Context) ([]core.Conto, error) {
	values, err := s.read(ctx, s.cfg.ContiSheet)
	if err != nil {
		return nil, err
	}
	conti, _, err := parseConti(values)
	return conti, err
}

func (s *Store) ListLibri(ctx context.Context) ([]core.Libro, error) {
	values, err := s.read(ctx, s.cfg.ContiSheet)
	if err != nil {
		return nil, err
	}
	_, libri, err := parseConti(values)
	return libri, err
}
