package query

import (
	"encoding/json"
	"time"
)

// EventRecord is one audit log entry for API queries.
type EventRecord struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderRecord is a persisted order snapshot for API queries.
type OrderRecord struct {
	OrderID      string    `json:"order_id"`
	OrderIndex   int64     `json:"order_index"`
	Provider     string    `json:"provider"`
	Receiver     string    `json:"receiver"`
	Token        string    `json:"token"`
	CryptoAmount string    `json:"crypto_amount"`
	FiatAmount   string    `json:"fiat_amount"`
	CurrencyCode string    `json:"currency_code"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Deadline     time.Time `json:"deadline"`
}

// OrderFilter narrows order history queries. Zero values mean "any".
type OrderFilter struct {
	Provider string
	Receiver string
	Status   string
}
