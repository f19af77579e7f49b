package order

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"P2pEx/internal/registry"
)

var (
	// ErrOrder is returned for an order index outside the book.
	ErrOrder = errors.New("order error")

	// ErrUnauthorized is returned when the caller is neither the party a
	// transition requires.
	ErrUnauthorized = errors.New("authorization error")

	// ErrInvalidState is returned for a transition out of a terminal status.
	ErrInvalidState = errors.New("invalid order state")
)

// Order is a single trade request. PaymentMethod is snapshotted at initiation
// so later edits to the provider's list cannot rewrite an open trade's terms.
type Order struct {
	ID            uuid.UUID              `json:"id"`
	Index         uint64                 `json:"index"`
	Provider      common.Address         `json:"provider"`
	Receiver      common.Address         `json:"receiver"`
	PaymentMethod registry.PaymentMethod `json:"payment_method"`
	FiatAmount    decimal.Decimal        `json:"fiat_amount"`
	CurrencyCode  string                 `json:"currency_code"`
	Token         common.Address         `json:"token"`
	CryptoAmount  uint64                 `json:"crypto_amount"`
	Status        Status                 `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	// Deadline is CreatedAt plus the provider's auto-complete window at
	// initiation time. Timeout enforcement is an external scheduler's job.
	Deadline time.Time `json:"deadline"`
}

// Book is the append-only order sequence. Orders are never deleted; index
// assignment is the global orders count at initiation.
type Book struct {
	orders []*Order
}

func NewBook() *Book {
	return &Book{}
}

// Append assigns the next index to o and stores it.
func (b *Book) Append(o *Order) uint64 {
	o.Index = uint64(len(b.orders))
	b.orders = append(b.orders, o)
	return o.Index
}

// Get returns the order at index.
func (b *Book) Get(index uint64) (*Order, error) {
	if index >= uint64(len(b.orders)) {
		return nil, ErrOrder
	}
	return b.orders[index], nil
}

// Count returns the total number of orders ever created.
func (b *Book) Count() uint64 {
	return uint64(len(b.orders))
}

// ByProvider returns every order bound to provider, oldest first.
func (b *Book) ByProvider(provider common.Address) []*Order {
	var out []*Order
	for _, o := range b.orders {
		if o.Provider == provider {
			out = append(out, o)
		}
	}
	return out
}

// ByReceiver returns every order bound to receiver, oldest first.
func (b *Book) ByReceiver(receiver common.Address) []*Order {
	var out []*Order
	for _, o := range b.orders {
		if o.Receiver == receiver {
			out = append(out, o)
		}
	}
	return out
}

// Transition moves o to next after checking the state machine. The caller
// authorization guard belongs to the engine.
func (o *Order) Transition(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidState
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}
