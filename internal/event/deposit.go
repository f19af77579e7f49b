package event

import "github.com/ethereum/go-ethereum/common"

type DepositMade struct {
	Provider common.Address `json:"provider"`
	Token    common.Address `json:"token"`
	Amount   uint64         `json:"amount"`
	// Balance is the provider's deposited amount after the credit.
	Balance uint64 `json:"balance"`
}

func (e *DepositMade) EventType() EventType { return EventTypeDepositMade }

type WithdrawalMade struct {
	Provider common.Address `json:"provider"`
	Token    common.Address `json:"token"`
	Amount   uint64         `json:"amount"`
	Balance  uint64         `json:"balance"`
}

func (e *WithdrawalMade) EventType() EventType { return EventTypeWithdrawalMade }
