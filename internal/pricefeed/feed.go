// Package pricefeed supplies token/fiat reference prices. Prices are quoted
// Chainlink-style: an integer answer plus a decimals exponent.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when the feed has no quote for the pair.
var ErrNoPrice = errors.New("no price for pair")

// Price is a fixed-point quote: Answer / 10^Decimals units of fiat per one
// whole token.
type Price struct {
	Answer   int64
	Decimals int32
	Currency string
}

// Fiat converts amount base token units (scaled by tokenDecimals) into a
// fiat amount in the quote currency.
func (p Price) Fiat(amount uint64, tokenDecimals int32) decimal.Decimal {
	units := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -tokenDecimals)
	rate := decimal.New(p.Answer, -p.Decimals)
	return units.Mul(rate)
}

// Feed answers reference-price lookups for a token in a fiat currency.
type Feed interface {
	Quote(ctx context.Context, tok common.Address, currency string) (Price, error)
}

type pair struct {
	tok      common.Address
	currency string
}

// StaticFeed serves quotes from a fixed table. Used in tests and as a
// fallback when no feed endpoint is configured.
type StaticFeed struct {
	quotes map[pair]Price
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		quotes: make(map[pair]Price),
	}
}

func (f *StaticFeed) Set(tok common.Address, currency string, p Price) {
	p.Currency = currency
	f.quotes[pair{tok, currency}] = p
}

func (f *StaticFeed) Quote(_ context.Context, tok common.Address, currency string) (Price, error) {
	p, ok := f.quotes[pair{tok, currency}]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s/%s", ErrNoPrice, tok.Hex(), currency)
	}
	return p, nil
}
