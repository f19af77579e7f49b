package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeProviderAdded
	EventTypeProviderDeleted
	EventTypePaymentMethodAdded
	EventTypePaymentMethodRemoved
	EventTypePaymentMethodUpdated
	EventTypePaymentMethodsReplaced
	EventTypeAvailabilityChanged
	EventTypeTimeLimitUpdated
	EventTypeTokenListed
	EventTypeTradedTokenAdded
	EventTypeTradedTokenRemoved
	EventTypeDepositMade
	EventTypeWithdrawalMade
	EventTypeOrderInitiated
	EventTypeOrderCompleted
	EventTypeOrderCancelled
	EventTypeOrderDisputed
)

// Envelope wraps every event appended to the audit log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Unique event id, doubles as the persistence dedup key
	EventID uuid.UUID

	// Event type discriminator
	Type EventType

	// Address that triggered the operation
	Actor common.Address

	// Engine clock at apply time
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte
}

// Event is the interface all event payloads implement.
type Event interface {
	EventType() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypeProviderAdded:
		return "ProviderAdded"
	case EventTypeProviderDeleted:
		return "ProviderDeleted"
	case EventTypePaymentMethodAdded:
		return "PaymentMethodAdded"
	case EventTypePaymentMethodRemoved:
		return "PaymentMethodRemoved"
	case EventTypePaymentMethodUpdated:
		return "PaymentMethodUpdated"
	case EventTypePaymentMethodsReplaced:
		return "PaymentMethodsReplaced"
	case EventTypeAvailabilityChanged:
		return "AvailabilityChanged"
	case EventTypeTimeLimitUpdated:
		return "TimeLimitUpdated"
	case EventTypeTokenListed:
		return "TokenListed"
	case EventTypeTradedTokenAdded:
		return "TradedTokenAdded"
	case EventTypeTradedTokenRemoved:
		return "TradedTokenRemoved"
	case EventTypeDepositMade:
		return "DepositMade"
	case EventTypeWithdrawalMade:
		return "WithdrawalMade"
	case EventTypeOrderInitiated:
		return "OrderInitiated"
	case EventTypeOrderCompleted:
		return "OrderCompleted"
	case EventTypeOrderCancelled:
		return "OrderCancelled"
	case EventTypeOrderDisputed:
		return "OrderDisputed"
	default:
		return "Unknown"
	}
}

// Subject returns the NATS subject suffix for the event type, e.g.
// "provider_added". Unknown types map to "unknown".
func (et EventType) Subject() string {
	switch et {
	case EventTypeProviderAdded:
		return "provider_added"
	case EventTypeProviderDeleted:
		return "provider_deleted"
	case EventTypePaymentMethodAdded:
		return "payment_method_added"
	case EventTypePaymentMethodRemoved:
		return "payment_method_removed"
	case EventTypePaymentMethodUpdated:
		return "payment_method_updated"
	case EventTypePaymentMethodsReplaced:
		return "payment_methods_replaced"
	case EventTypeAvailabilityChanged:
		return "availability_changed"
	case EventTypeTimeLimitUpdated:
		return "time_limit_updated"
	case EventTypeTokenListed:
		return "token_listed"
	case EventTypeTradedTokenAdded:
		return "traded_token_added"
	case EventTypeTradedTokenRemoved:
		return "traded_token_removed"
	case EventTypeDepositMade:
		return "deposit_made"
	case EventTypeWithdrawalMade:
		return "withdrawal_made"
	case EventTypeOrderInitiated:
		return "order_initiated"
	case EventTypeOrderCompleted:
		return "order_completed"
	case EventTypeOrderCancelled:
		return "order_cancelled"
	case EventTypeOrderDisputed:
		return "order_disputed"
	default:
		return "unknown"
	}
}
