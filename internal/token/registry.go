package token

import (
	"errors"

	"P2pEx/internal/indexset"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrToken covers every "this token is not where it should be" failure:
	// not tradeable, already tradeable, or not currently traded by a provider.
	ErrToken = errors.New("Token error")

	// ErrOnlyOwner is returned when a non-administrator calls an
	// administrator-gated operation.
	ErrOnlyOwner = errors.New("caller is not the owner")
)

// AdminCheck is the capability gate for registry administration.
// It is a collaborator: the registry never decides who the administrator is.
type AdminCheck func(caller common.Address) bool

// Registry is the administrator-controlled set of tokens eligible for trading.
// Tokens are never removed once listed.
type Registry struct {
	isAdmin   AdminCheck
	tradeable *indexset.Set[common.Address]
}

func NewRegistry(isAdmin AdminCheck) *Registry {
	return &Registry{
		isAdmin:   isAdmin,
		tradeable: indexset.New[common.Address](),
	}
}

// MakeTradeable lists tok for trading. Administrator only.
func (r *Registry) MakeTradeable(caller, tok common.Address) error {
	if r.isAdmin == nil || !r.isAdmin(caller) {
		return ErrOnlyOwner
	}
	if err := r.tradeable.Add(tok); err != nil {
		return ErrToken
	}
	return nil
}

func (r *Registry) IsTradeable(tok common.Address) bool {
	return r.tradeable.Contains(tok)
}

// Index returns tok's current slot in the tradeable list.
func (r *Registry) Index(tok common.Address) (int, error) {
	idx, err := r.tradeable.IndexOf(tok)
	if err != nil {
		return 0, ErrToken
	}
	return idx, nil
}

// Tokens returns a snapshot of the tradeable list.
func (r *Registry) Tokens() []common.Address {
	return r.tradeable.Values()
}

func (r *Registry) Count() int {
	return r.tradeable.Len()
}
