package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"saldi/internal/core"
	"saldi/internal/ledger"
)

func (s *Store) InsertRecurrence(ctx context.Context, r core.Recurrence) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var end, last sql.NullInt64
	if !r.End.IsZero() {
		end = sql.NullInt64{Int64: r.End.Unix(), Valid: true}
	}
	if !r.LastMaterialized.IsZero() {
		last = sql.NullInt64{Int64: r.LastMaterialized.Unix(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ricorrenze (id, type, amount_cents, from_conto_id, to_conto_id, category_id,
			description, start_at, end_at, every, last_materialized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Type), r.Amount.Cents, r.FromContoID, r.ToContoID, r.CategoryID,
		r.Description, r.Start.Unix(), end, string(r.Every), last)
	if err != nil {
		return fmt.Errorf("insert recurrence %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListRecurrences(ctx context.Context) ([]core.Recurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, from_conto_id, to_conto_id, category_id,
			description, start_at, end_at, every, last_materialized_at
		FROM ricorrenze ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query recurrences: %w", err)
	}
	defer rows.Close()

	var out []core.Recurrence
	for rows.Next() {
		var (
			r          core.Recurrence
			typ, every string
			amount     int64
			start      int64
			end, last  sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &typ, &amount, &r.FromContoID, &r.ToContoID, &r.CategoryID,
			&r.Description, &start, &end, &every, &last); err != nil {
			return nil, fmt.Errorf("scan recurrence: %w", err)
		}
		r.Type = core.TxType(typ)
		r.Every = core.Frequency(every)
		r.Amount = core.Cents(amount)
		r.Start = time.Unix(start, 0).In(s.loc)
		if end.Valid {
			r.End = time.Unix(end.Int64, 0).In(s.loc)
		}
		if last.Valid {
			r.LastMaterialized = time.Unix(last.Int64, 0).In(s.loc)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetLastMaterialized(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, "UPDATE ricorrenze SET last_materialized_at = ? WHERE id = ?", at.Unix(), id)
	if err != nil {
		return fmt.Errorf("update recurrence %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recurrence %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("recurrence %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}
