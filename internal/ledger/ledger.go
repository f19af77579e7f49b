package ledger

import (
	"errors"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrBalance is returned when a debit exceeds the provider's deposited
	// amount for a token, or when a credit would overflow it.
	ErrBalance = errors.New("balance error")

	// ErrZeroDeposits is returned when an operation requires at least one
	// non-zero deposit and the provider has none for the token.
	ErrZeroDeposits = errors.New("0 deposits error")

	// ErrHasDeposits is returned when an operation requires the provider to
	// hold no deposits at all.
	ErrHasDeposits = errors.New("has deposits error")
)

// Ledger tracks per-provider deposits in base token units, alongside the
// total amount the system holds in custody per token. Custody totals are
// maintained redundantly so the sum invariant can be checked cheaply.
type Ledger struct {
	// deposits is token -> provider -> amount. Zero entries are removed.
	deposits map[common.Address]map[common.Address]uint64
	custody  map[common.Address]uint64
}

func New() *Ledger {
	return &Ledger{
		deposits: make(map[common.Address]map[common.Address]uint64),
		custody:  make(map[common.Address]uint64),
	}
}

// Credit records amount deposited by provider for tok. The corresponding
// token transfer must already have succeeded.
func (l *Ledger) Credit(provider, tok common.Address, amount uint64) error {
	cur := l.Deposited(provider, tok)
	if amount > math.MaxUint64-cur {
		return ErrBalance
	}
	byProvider, ok := l.deposits[tok]
	if !ok {
		byProvider = make(map[common.Address]uint64)
		l.deposits[tok] = byProvider
	}
	byProvider[provider] = cur + amount
	l.custody[tok] += amount
	return nil
}

// Debit releases amount of provider's deposit for tok. The entry is removed
// when it reaches zero so HasDeposits stays accurate.
func (l *Ledger) Debit(provider, tok common.Address, amount uint64) error {
	cur := l.Deposited(provider, tok)
	if amount > cur {
		return ErrBalance
	}
	byProvider := l.deposits[tok]
	if cur == amount {
		delete(byProvider, provider)
		if len(byProvider) == 0 {
			delete(l.deposits, tok)
		}
	} else {
		byProvider[provider] = cur - amount
	}
	l.custody[tok] -= amount
	if l.custody[tok] == 0 {
		delete(l.custody, tok)
	}
	return nil
}

// Deposited returns provider's balance for tok. Unknown pairs read as zero.
func (l *Ledger) Deposited(provider, tok common.Address) uint64 {
	return l.deposits[tok][provider]
}

// Custody returns the total held across all providers for tok.
func (l *Ledger) Custody(tok common.Address) uint64 {
	return l.custody[tok]
}

// HasDeposits reports whether provider holds a non-zero deposit for any token.
func (l *Ledger) HasDeposits(provider common.Address) bool {
	for _, byProvider := range l.deposits {
		if byProvider[provider] > 0 {
			return true
		}
	}
	return false
}

// AssertNoDeposits fails with ErrHasDeposits when provider still holds funds.
func (l *Ledger) AssertNoDeposits(provider common.Address) error {
	if l.HasDeposits(provider) {
		return ErrHasDeposits
	}
	return nil
}

// AssertDeposited fails with ErrZeroDeposits when provider holds nothing for
// tok.
func (l *Ledger) AssertDeposited(provider, tok common.Address) error {
	if l.Deposited(provider, tok) == 0 {
		return ErrZeroDeposits
	}
	return nil
}

// Balances returns provider's non-zero deposits keyed by token.
func (l *Ledger) Balances(provider common.Address) map[common.Address]uint64 {
	out := make(map[common.Address]uint64)
	for tok, byProvider := range l.deposits {
		if amt := byProvider[provider]; amt > 0 {
			out[tok] = amt
		}
	}
	return out
}

// Tokens returns every token with a non-zero custody total.
func (l *Ledger) Tokens() []common.Address {
	out := make([]common.Address, 0, len(l.custody))
	for tok := range l.custody {
		out = append(out, tok)
	}
	return out
}
