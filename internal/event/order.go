package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderInitiated struct {
	OrderID      uuid.UUID       `json:"order_id"`
	OrderIndex   uint64          `json:"order_index"`
	Provider     common.Address  `json:"provider"`
	Receiver     common.Address  `json:"receiver"`
	Token        common.Address  `json:"token"`
	CryptoAmount uint64          `json:"crypto_amount"`
	FiatAmount   decimal.Decimal `json:"fiat_amount"`
	CurrencyCode string          `json:"currency_code"`
}

func (e *OrderInitiated) EventType() EventType { return EventTypeOrderInitiated }

type OrderCompleted struct {
	OrderID      uuid.UUID      `json:"order_id"`
	OrderIndex   uint64         `json:"order_index"`
	Provider     common.Address `json:"provider"`
	Receiver     common.Address `json:"receiver"`
	Token        common.Address `json:"token"`
	CryptoAmount uint64         `json:"crypto_amount"`
}

func (e *OrderCompleted) EventType() EventType { return EventTypeOrderCompleted }

type OrderCancelled struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderIndex uint64    `json:"order_index"`
}

func (e *OrderCancelled) EventType() EventType { return EventTypeOrderCancelled }

type OrderDisputed struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderIndex uint64    `json:"order_index"`
}

func (e *OrderDisputed) EventType() EventType { return EventTypeOrderDisputed }
