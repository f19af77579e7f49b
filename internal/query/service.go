// Package query provides read-only access to the persisted audit log. Live
// state is served straight from the engine; this service answers historical
// questions the in-memory state no longer holds.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Watermark returns the highest persisted event sequence, or -1 when the log
// is empty.
func (s *Service) Watermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM audit.events`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	if !seq.Valid {
		return -1, nil
	}
	return seq.Int64, nil
}

// Events returns up to limit audit entries with sequence > afterSequence,
// oldest first. Pass actor to scope to one address, empty for all.
func (s *Service) Events(ctx context.Context, actor string, afterSequence int64, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `SELECT sequence, event_id, event_type, actor, payload, timestamp
		FROM audit.events
		WHERE sequence > $1`
	args := []interface{}{afterSequence}

	if actor != "" {
		q += fmt.Sprintf(" AND actor = $%d", len(args)+1)
		args = append(args, actor)
	}
	q += fmt.Sprintf(" ORDER BY sequence ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.Sequence, &r.EventID, &r.EventType, &r.Actor, &r.Payload, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Orders returns persisted order snapshots matching filter, newest first.
func (s *Service) Orders(ctx context.Context, filter OrderFilter, limit int) ([]OrderRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var conds []string
	var args []interface{}
	add := func(col, val string) {
		if val != "" {
			args = append(args, val)
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("provider", filter.Provider)
	add("receiver", filter.Receiver)
	add("status", filter.Status)

	q := `SELECT order_id, order_index, provider, receiver, token, crypto_amount,
		fiat_amount, currency_code, status, created_at, updated_at, deadline
		FROM audit.orders`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY order_index DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(
			&r.OrderID, &r.OrderIndex, &r.Provider, &r.Receiver, &r.Token,
			&r.CryptoAmount, &r.FiatAmount, &r.CurrencyCode, &r.Status,
			&r.CreatedAt, &r.UpdatedAt, &r.Deadline,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Order returns the persisted snapshot for one order index.
func (s *Service) Order(ctx context.Context, index int64) (*OrderRecord, error) {
	var r OrderRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, order_index, provider, receiver, token, crypto_amount,
		       fiat_amount, currency_code, status, created_at, updated_at, deadline
		FROM audit.orders
		WHERE order_index = $1
	`, index).Scan(
		&r.OrderID, &r.OrderIndex, &r.Provider, &r.Receiver, &r.Token,
		&r.CryptoAmount, &r.FiatAmount, &r.CurrencyCode, &r.Status,
		&r.CreatedAt, &r.UpdatedAt, &r.Deadline,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
