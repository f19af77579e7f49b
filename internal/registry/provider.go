package registry

import (
	"time"

	"P2pEx/internal/indexset"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxPaymentMethods bounds the per-provider payment method list.
	MaxPaymentMethods = 32

	// MaxAutoCompleteTimeLimit is both the default and the upper bound for
	// a provider's auto-complete window.
	MaxAutoCompleteTimeLimit = 4 * time.Hour
)

// PaymentMethod is an advertised fiat channel. The three fields are opaque to
// the core; duplicates across a provider's list are allowed.
type PaymentMethod struct {
	Name                 string `json:"name"`
	AcceptedCurrency     string `json:"accepted_currency"`
	TransferInstructions string `json:"transfer_instructions"`
}

// Provider is one registered liquidity provider.
type Provider struct {
	Address               common.Address
	IsAvailable           bool
	AutoCompleteTimeLimit time.Duration
	PaymentMethods        []PaymentMethod
	TradedTokens          *indexset.Set[common.Address]
}

func newProvider(addr common.Address) *Provider {
	return &Provider{
		Address:               addr,
		IsAvailable:           false,
		AutoCompleteTimeLimit: MaxAutoCompleteTimeLimit,
		TradedTokens:          indexset.New[common.Address](),
	}
}
