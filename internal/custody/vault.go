// Package custody abstracts the token transfers that move funds between
// external accounts and the system's escrow. The ledger only ever mutates
// after a vault call has succeeded.
package custody

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTransferFailed is returned when the underlying token movement did not
// go through. The enclosing operation must leave the ledger untouched.
var ErrTransferFailed = errors.New("Transfer failed")

// Vault executes token transfers on behalf of the escrow.
type Vault interface {
	// Pull moves amount of tok from the owner's external account into
	// escrow custody.
	Pull(ctx context.Context, owner, tok common.Address, amount uint64) error

	// Push moves amount of tok out of escrow custody to the receiver.
	Push(ctx context.Context, receiver, tok common.Address, amount uint64) error

	// BalanceOf reports the receiver-side balance held for addr outside
	// escrow. Used by tests and reconciliation queries.
	BalanceOf(ctx context.Context, addr, tok common.Address) (uint64, error)
}
