package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ProviderAdded struct {
	Provider common.Address `json:"provider"`
}

func (e *ProviderAdded) EventType() EventType { return EventTypeProviderAdded }

type ProviderDeleted struct {
	Provider common.Address `json:"provider"`
}

func (e *ProviderDeleted) EventType() EventType { return EventTypeProviderDeleted }

type PaymentMethodAdded struct {
	Provider         common.Address `json:"provider"`
	Index            int            `json:"index"`
	Name             string         `json:"name"`
	AcceptedCurrency string         `json:"accepted_currency"`
}

func (e *PaymentMethodAdded) EventType() EventType { return EventTypePaymentMethodAdded }

type PaymentMethodRemoved struct {
	Provider common.Address `json:"provider"`
	Index    int            `json:"index"`
}

func (e *PaymentMethodRemoved) EventType() EventType { return EventTypePaymentMethodRemoved }

type PaymentMethodUpdated struct {
	Provider         common.Address `json:"provider"`
	Index            int            `json:"index"`
	Name             string         `json:"name"`
	AcceptedCurrency string         `json:"accepted_currency"`
}

func (e *PaymentMethodUpdated) EventType() EventType { return EventTypePaymentMethodUpdated }

type PaymentMethodsReplaced struct {
	Provider common.Address `json:"provider"`
	Count    int            `json:"count"`
}

func (e *PaymentMethodsReplaced) EventType() EventType { return EventTypePaymentMethodsReplaced }

type AvailabilityChanged struct {
	Provider    common.Address `json:"provider"`
	IsAvailable bool           `json:"is_available"`
}

func (e *AvailabilityChanged) EventType() EventType { return EventTypeAvailabilityChanged }

type TimeLimitUpdated struct {
	Provider common.Address `json:"provider"`
	Limit    time.Duration  `json:"limit"`
}

func (e *TimeLimitUpdated) EventType() EventType { return EventTypeTimeLimitUpdated }
