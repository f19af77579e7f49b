package event

import "github.com/ethereum/go-ethereum/common"

type TokenListed struct {
	Token common.Address `json:"token"`
}

func (e *TokenListed) EventType() EventType { return EventTypeTokenListed }

type TradedTokenAdded struct {
	Provider common.Address `json:"provider"`
	Token    common.Address `json:"token"`
}

func (e *TradedTokenAdded) EventType() EventType { return EventTypeTradedTokenAdded }

type TradedTokenRemoved struct {
	Provider common.Address `json:"provider"`
	Token    common.Address `json:"token"`
}

func (e *TradedTokenRemoved) EventType() EventType { return EventTypeTradedTokenRemoved }
