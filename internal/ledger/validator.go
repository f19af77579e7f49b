package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	ledger *Ledger
}

func NewInvariantValidator(l *Ledger) *InvariantValidator {
	return &InvariantValidator{
		ledger: l,
	}
}

// ValidateCustodySum verifies that the custody total for tok equals the sum
// of every provider's deposit for it.
func (v *InvariantValidator) ValidateCustodySum(tok common.Address) error {
	var sum uint64
	for _, amt := range v.ledger.deposits[tok] {
		sum += amt
	}
	if sum != v.ledger.custody[tok] {
		return fmt.Errorf("custody for %s is %d, provider deposits sum to %d",
			tok.Hex(), v.ledger.custody[tok], sum)
	}
	return nil
}

// ValidateAllCustodySums checks the custody sum for every tracked token, and
// that no custody total exists without matching deposit entries.
func (v *InvariantValidator) ValidateAllCustodySums() error {
	for tok := range v.ledger.deposits {
		if err := v.ValidateCustodySum(tok); err != nil {
			return err
		}
	}
	for tok := range v.ledger.custody {
		if _, ok := v.ledger.deposits[tok]; !ok {
			return fmt.Errorf("custody for %s is %d with no deposit entries",
				tok.Hex(), v.ledger.custody[tok])
		}
	}
	return nil
}
