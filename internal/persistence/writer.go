package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AuditWriter writes audit events and order snapshots to Postgres using
// multi-row INSERTs. Writes are idempotent: event rows dedup on event_id,
// order rows upsert on order_id so re-delivery after a crash is safe.
type AuditWriter struct {
	db *sql.DB
}

// EventRow represents a row in audit.events
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	Actor     string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// OrderRow represents a row in audit.orders
type OrderRow struct {
	OrderID      string
	OrderIndex   int64
	Provider     string
	Receiver     string
	Token        string
	// Base-unit token amount, decimal string: uint64 range exceeds BIGINT.
	CryptoAmount string
	FiatAmount   string
	CurrencyCode string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deadline     time.Time
}

func NewAuditWriter(db *sql.DB) *AuditWriter {
	return &AuditWriter{db: db}
}

// WriteEventBatch writes a batch of events inside tx.
func (w *AuditWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO audit.events
		(sequence, event_id, event_type, actor, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*6)

	for i, e := range events {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.Actor, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteOrderBatch upserts order snapshots inside tx. Later rows for the same
// order win, so status transitions overwrite the initiation snapshot.
func (w *AuditWriter) WriteOrderBatch(ctx context.Context, tx *sql.Tx, orders []OrderRow) error {
	if len(orders) == 0 {
		return nil
	}

	query := `INSERT INTO audit.orders
		(order_id, order_index, provider, receiver, token, crypto_amount,
		 fiat_amount, currency_code, status, created_at, updated_at, deadline)
		VALUES `

	values := make([]string, 0, len(orders))
	args := make([]interface{}, 0, len(orders)*12)

	for i, o := range orders {
		base := i * 12
		placeholders := make([]string, 12)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			o.OrderID, o.OrderIndex, o.Provider, o.Receiver, o.Token,
			o.CryptoAmount, o.FiatAmount, o.CurrencyCode, o.Status,
			o.CreatedAt, o.UpdatedAt, o.Deadline,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (order_id) DO UPDATE SET
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
