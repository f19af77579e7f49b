package custody

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type holding struct {
	addr common.Address
	tok  common.Address
}

// MemVault is an in-memory Vault for tests and local runs. Each address owns
// a per-token balance; Pull debits the owner and Push credits the receiver.
type MemVault struct {
	mu       sync.Mutex
	balances map[holding]uint64

	// FailPulls and FailPushes force ErrTransferFailed, for exercising
	// the all-or-nothing paths.
	FailPulls  bool
	FailPushes bool
}

func NewMemVault() *MemVault {
	return &MemVault{
		balances: make(map[holding]uint64),
	}
}

// Fund seeds addr's external balance for tok.
func (v *MemVault) Fund(addr, tok common.Address, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[holding{addr, tok}] += amount
}

func (v *MemVault) Pull(_ context.Context, owner, tok common.Address, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.FailPulls {
		return ErrTransferFailed
	}
	key := holding{owner, tok}
	if v.balances[key] < amount {
		return ErrTransferFailed
	}
	v.balances[key] -= amount
	return nil
}

func (v *MemVault) Push(_ context.Context, receiver, tok common.Address, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.FailPushes {
		return ErrTransferFailed
	}
	v.balances[holding{receiver, tok}] += amount
	return nil
}

func (v *MemVault) BalanceOf(_ context.Context, addr, tok common.Address) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[holding{addr, tok}], nil
}
