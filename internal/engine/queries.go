package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"P2pEx/internal/order"
	"P2pEx/internal/registry"
)

// Read-only state queries. Each takes the engine mutex so no query ever sees
// a half-applied operation.

// ProviderView is a copyable snapshot of one provider record.
type ProviderView struct {
	Address               common.Address           `json:"address"`
	IsAvailable           bool                     `json:"is_available"`
	AutoCompleteTimeLimit time.Duration            `json:"auto_complete_time_limit"`
	PaymentMethods        []registry.PaymentMethod `json:"payment_methods"`
	TradedTokens          []common.Address         `json:"traded_tokens"`
}

func snapshotProvider(p *registry.Provider) ProviderView {
	methods := make([]registry.PaymentMethod, len(p.PaymentMethods))
	copy(methods, p.PaymentMethods)
	return ProviderView{
		Address:               p.Address,
		IsAvailable:           p.IsAvailable,
		AutoCompleteTimeLimit: p.AutoCompleteTimeLimit,
		PaymentMethods:        methods,
		TradedTokens:          p.TradedTokens.Values(),
	}
}

func (e *Engine) Provider(addr common.Address) (ProviderView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.providers.Get(addr)
	if err != nil {
		return ProviderView{}, err
	}
	return snapshotProvider(p), nil
}

func (e *Engine) ProvidersByAvailability(available bool) []ProviderView {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.providers.ListByAvailability(available)
	out := make([]ProviderView, 0, len(list))
	for _, p := range list {
		out = append(out, snapshotProvider(p))
	}
	return out
}

func (e *Engine) ProvidersCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.providers.Count()
}

func (e *Engine) PaymentMethods(addr common.Address) ([]registry.PaymentMethod, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.providers.PaymentMethods(addr)
}

func (e *Engine) TradeableTokens() []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.Tokens()
}

func (e *Engine) IsTokenTradeable(tok common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.IsTradeable(tok)
}

// TradeableTokenIndex returns tok's slot in the global tradeable list.
func (e *Engine) TradeableTokenIndex(tok common.Address) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.Index(tok)
}

func (e *Engine) TradedTokenIndex(provider, tok common.Address) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.providers.TradedTokenIndex(provider, tok)
}

func (e *Engine) Deposited(provider, tok common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deposits.Deposited(provider, tok)
}

func (e *Engine) Custody(tok common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deposits.Custody(tok)
}

func (e *Engine) Balances(provider common.Address) map[common.Address]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deposits.Balances(provider)
}

// Order returns a copy of the order at index. The copy keeps terminal state
// edits in the engine only.
func (e *Engine) Order(index uint64) (order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.book.Get(index)
	if err != nil {
		return order.Order{}, err
	}
	return *o, nil
}

func (e *Engine) OrdersCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Count()
}

func (e *Engine) OrdersByProvider(provider common.Address) []order.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyOrders(e.book.ByProvider(provider))
}

func (e *Engine) OrdersByReceiver(receiver common.Address) []order.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyOrders(e.book.ByReceiver(receiver))
}

func copyOrders(in []*order.Order) []order.Order {
	out := make([]order.Order, 0, len(in))
	for _, o := range in {
		out = append(out, *o)
	}
	return out
}

// Sequence returns the next event sequence number to be assigned.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}
