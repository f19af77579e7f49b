package registry

import (
	"errors"
	"time"

	"P2pEx/internal/token"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrProvider is returned when the caller or target address is not a
	// registered provider, or when a one-time registration is repeated.
	ErrProvider = errors.New("provider error")

	// ErrPaymentMethod is returned for an invalid payment method index or an
	// oversized replacement list.
	ErrPaymentMethod = errors.New("payment method error")

	// ErrMaxReached is returned when the payment method list is full.
	ErrMaxReached = errors.New("Max allowed reached")

	// ErrTimeLimit is returned for an out-of-range auto-complete window.
	ErrTimeLimit = errors.New("Must be 4 hours or less")
)

// Registry owns every Provider record. It enforces pure provider-shape
// invariants; guards that need the deposit ledger (availability backing,
// deletion with outstanding deposits) live in the engine.
type Registry struct {
	providers map[common.Address]*Provider
}

func New() *Registry {
	return &Registry{
		providers: make(map[common.Address]*Provider),
	}
}

// Add registers caller as a provider. One registration per address.
func (r *Registry) Add(caller common.Address) (*Provider, error) {
	if _, ok := r.providers[caller]; ok {
		return nil, ErrProvider
	}
	p := newProvider(caller)
	r.providers[caller] = p
	return p, nil
}

// Delete drops the provider record along with its payment methods and traded
// tokens. The zero-deposit precondition is checked by the caller.
func (r *Registry) Delete(caller common.Address) error {
	if _, ok := r.providers[caller]; !ok {
		return ErrProvider
	}
	delete(r.providers, caller)
	return nil
}

func (r *Registry) Get(addr common.Address) (*Provider, error) {
	p, ok := r.providers[addr]
	if !ok {
		return nil, ErrProvider
	}
	return p, nil
}

func (r *Registry) Count() int {
	return len(r.providers)
}

// ListByAvailability returns a snapshot of providers filtered on the
// availability flag. Iteration order is not stable.
func (r *Registry) ListByAvailability(available bool) []*Provider {
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.IsAvailable == available {
			out = append(out, p)
		}
	}
	return out
}

// --- Payment method CRUD ---

func (r *Registry) AddPaymentMethod(caller common.Address, pm PaymentMethod) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if len(p.PaymentMethods) >= MaxPaymentMethods {
		return ErrMaxReached
	}
	p.PaymentMethods = append(p.PaymentMethods, pm)
	return nil
}

// RemovePaymentMethod removes the entry at index via swap-with-last. No
// external reference to a position persists beyond a single call, so the
// reorder is observable but harmless.
func (r *Registry) RemovePaymentMethod(caller common.Address, index int) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.PaymentMethods) {
		return ErrPaymentMethod
	}
	last := len(p.PaymentMethods) - 1
	p.PaymentMethods[index] = p.PaymentMethods[last]
	p.PaymentMethods = p.PaymentMethods[:last]
	return nil
}

func (r *Registry) UpdatePaymentMethod(caller common.Address, index int, pm PaymentMethod) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.PaymentMethods) {
		return ErrPaymentMethod
	}
	p.PaymentMethods[index] = pm
	return nil
}

// UpdateAllPaymentMethods replaces entries positionally. The replacement list
// may not be longer than the existing list; when it is shorter, trailing
// existing entries are left untouched and the length does not change.
func (r *Registry) UpdateAllPaymentMethods(caller common.Address, methods []PaymentMethod) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if len(methods) > len(p.PaymentMethods) {
		return ErrPaymentMethod
	}
	copy(p.PaymentMethods, methods)
	return nil
}

func (r *Registry) PaymentMethods(addr common.Address) ([]PaymentMethod, error) {
	p, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentMethod, len(p.PaymentMethods))
	copy(out, p.PaymentMethods)
	return out, nil
}

// --- Availability & time limit ---

// MarkAvailable flips the availability flag. The backing-deposit guard is the
// engine's responsibility.
func (r *Registry) MarkAvailable(caller common.Address) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	p.IsAvailable = true
	return nil
}

// MarkUnavailable always succeeds for a registered provider.
func (r *Registry) MarkUnavailable(caller common.Address) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	p.IsAvailable = false
	return nil
}

func (r *Registry) SetAutoCompleteTimeLimit(caller common.Address, limit time.Duration) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if limit <= 0 || limit > MaxAutoCompleteTimeLimit {
		return ErrTimeLimit
	}
	p.AutoCompleteTimeLimit = limit
	return nil
}

// --- Traded tokens ---

// AddTradedToken records tok in the provider's currently-traded set.
// Adding an already-present token is a no-op, never an error.
func (r *Registry) AddTradedToken(caller, tok common.Address) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if p.TradedTokens.Contains(tok) {
		return nil
	}
	return p.TradedTokens.Add(tok)
}

// RemoveTradedToken drops tok from the provider's currently-traded set.
func (r *Registry) RemoveTradedToken(caller, tok common.Address) error {
	p, err := r.Get(caller)
	if err != nil {
		return err
	}
	if !p.TradedTokens.Contains(tok) {
		return token.ErrToken
	}
	return p.TradedTokens.Remove(tok)
}

// TradedTokenIndex returns tok's slot in the provider's traded set.
func (r *Registry) TradedTokenIndex(provider, tok common.Address) (int, error) {
	p, err := r.Get(provider)
	if err != nil {
		return 0, err
	}
	idx, err := p.TradedTokens.IndexOf(tok)
	if err != nil {
		return 0, token.ErrToken
	}
	return idx, nil
}

func (r *Registry) TradedTokens(provider common.Address) ([]common.Address, error) {
	p, err := r.Get(provider)
	if err != nil {
		return nil, err
	}
	return p.TradedTokens.Values(), nil
}
