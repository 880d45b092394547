// Package storage is the SQLite ledger store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"

	_ "modernc.org/sqlite"
)

// Store keeps dates as unix seconds and returns them in loc.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	logger *log.Logger
}

func NewSQLiteStore(dbPath string, loc *time.Location, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("Schema up to date", "schema_version", version, "db_path", dbPath)
	return &Store{db: db, loc: loc, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const txColumns = `id, occurred_at, amount_cents, type, from_conto_id, to_conto_id, category_id, description`

// where renders the query filters. Rows without a date always match so the
// accessor sees and reports them.
func where(q ledger.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	var dateConds []string
	if !q.Range.From.IsZero() {
		dateConds = append(dateConds, "occurred_at >= ?")
		args = append(args, q.Range.From.Unix())
	}
	if !q.Range.To.IsZero() {
		dateConds = append(dateConds, "occurred_at <= ?")
		args = append(args, q.Range.To.Unix())
	}
	if len(dateConds) > 0 {
		conds = append(conds, "(occurred_at IS NULL OR ("+strings.Join(dateConds, " AND ")+"))")
	}
	if len(q.ContoIDs) > 0 {
		ph := placeholders(len(q.ContoIDs))
		conds = append(conds, "(from_conto_id IN ("+ph+") OR to_conto_id IN ("+ph+"))")
		for range 2 {
			for _, id := range q.ContoIDs {
				args = append(args, id)
			}
		}
	}
	if len(q.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, string(t))
		}
	}
	if len(q.CategoryIDs) > 0 {
		conds = append(conds, "category_id IN ("+placeholders(len(q.CategoryIDs))+")")
		for _, c := range q.CategoryIDs {
			args = append(args, c)
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *Store) FetchTransactions(ctx context.Context, q ledger.Query) ([]core.Transaction, error) {
	cond, args := where(q)
	order := "ASC"
	if q.Sort == ledger.Descending {
		order = "DESC"
	}
	query := "SELECT " + txColumns + " FROM transazioni" + cond +
		" ORDER BY occurred_at " + order + ", id " + order
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			occurredAt sql.NullInt64
			amount     sql.NullInt64
			txType     string
		)
		if err := rows.Scan(&t.ID, &occurredAt, &amount, &txType, &t.FromContoID, &t.ToContoID, &t.CategoryID, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxType(txType)
		if occurredAt.Valid {
			t.Date = time.Unix(occurredAt.Int64, 0).In(s.loc)
		}
		t.Amount = core.UnknownAmount
		if amount.Valid {
			t.Amount = core.Cents(amount.Int64)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) CountTransactions(ctx context.Context, q ledger.Query) (int, error) {
	cond, args := where(q)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transazioni"+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transazioni ("+txColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Date.Unix(), t.Amount.Cents, string(t.Type), t.FromContoID, t.ToContoID, t.CategoryID, t.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("transaction %s: %w", t.ID, ledger.ErrDuplicate)
		}
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	s.logger.DebugContext(ctx, "Transaction stored",
		log.NewFields().WithOperation(log.OpCreate).WithTransaction(t.ID, string(t.Type), t.Amount.Cents).ToSlice()...)
	return nil
}

// DeleteTransaction removes id and returns what was stored.
func (s *Store) DeleteTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		t          core.Transaction
		occurredAt sql.NullInt64
		amount     sql.NullInt64
		txType     string
	)
	err = tx.QueryRowContext(ctx, "SELECT "+txColumns+" FROM transazioni WHERE id = ?", id).
		Scan(&t.ID, &occurredAt, &amount, &txType, &t.FromContoID, &t.ToContoID, &t.CategoryID, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}
	t.Type = core.TxType(txType)
	if occurredAt.Valid {
		t.Date = time.Unix(occurredAt.Int64, 0).In(s.loc)
	}
	t.Amount = core.UnknownAmount
	if amount.Valid {
		t.Amount = core.Cents(amount.Int64)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transazioni WHERE id = ?", id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

func (s *Store) ListConti(ctx context.Context) ([]core.Conto, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, libro_id, name, type, initial_balance_cents, active FROM conti ORDER BY libro_id, name, id")
	if err != nil {
		return nil, fmt.Errorf("query conti: %w", err)
	}
	defer rows.Close()

	var out []core.Conto
	for rows.Next() {
		var (
			c       core.Conto
			typ     string
			initial int64
		)
		if err := rows.Scan(&c.ID, &c.LibroID, &c.Name, &typ, &initial, &c.Active); err != nil {
			return nil, fmt.Errorf("scan conto: %w", err)
		}
		c.Type = core.ContoType(typ)
		c.InitialBalance = core.Cents(initial)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListLibri(ctx context.Context) ([]core.Libro, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM libri ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("query libri: %w", err)
	}
	defer rows.Close()

	var out []core.Libro
	for rows.Next() {
		var l core.Libro
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan libro: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpsertLibro(ctx context.Context, l core.Libro) error {
	if strings.TrimSpace(l.Name) == "" {
		return core.ErrEmptyName
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO libri (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		l.ID, l.Name)
	if err != nil {
		return fmt.Errorf("upsert libro %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) UpsertConto(ctx context.Context, c core.Conto) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conti (id, libro_id, name, type, initial_balance_cents, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			libro_id = excluded.libro_id,
			name = excluded.name,
			type = excluded.type,
			initial_balance_cents = excluded.initial_balance_cents,
			active = excluded.active`,
		c.ID, c.LibroID, c.Name, string(c.Type), c.InitialBalance.Cents, c.Active)
	if err != nil {
		return fmt.Errorf("upsert conto %s: %w", c.ID, err)
	}
	return nil
}
