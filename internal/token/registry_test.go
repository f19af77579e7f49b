package token_test

import (
	"P2pEx/internal/token"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tkn1  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tkn2  = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func newRegistry() *token.Registry {
	return token.NewRegistry(func(caller common.Address) bool {
		return caller == admin
	})
}

func TestMakeTradeable_NonAdmin_Fails(t *testing.T) {
	r := newRegistry()

	err := r.MakeTradeable(other, tkn1)
	if !errors.Is(err, token.ErrOnlyOwner) {
		t.Errorf("got %v, want ErrOnlyOwner", err)
	}
	if r.IsTradeable(tkn1) {
		t.Error("token should not have been listed")
	}
}

func TestMakeTradeable_Duplicate_Fails(t *testing.T) {
	r := newRegistry()

	if err := r.MakeTradeable(admin, tkn1); err != nil {
		t.Fatalf("first listing failed: %v", err)
	}
	err := r.MakeTradeable(admin, tkn1)
	if !errors.Is(err, token.ErrToken) {
		t.Errorf("got %v, want ErrToken", err)
	}
	if r.Count() != 1 {
		t.Errorf("count: got %d, want 1", r.Count())
	}
}

func TestIndex_MatchesTokensSlice(t *testing.T) {
	r := newRegistry()
	r.MakeTradeable(admin, tkn1)
	r.MakeTradeable(admin, tkn2)

	for _, tok := range []common.Address{tkn1, tkn2} {
		idx, err := r.Index(tok)
		if err != nil {
			t.Fatalf("Index(%s): %v", tok.Hex(), err)
		}
		if got := r.Tokens()[idx]; got != tok {
			t.Errorf("Tokens()[%d] = %s, want %s", idx, got.Hex(), tok.Hex())
		}
	}
}

func TestIndex_NotTradeable_Fails(t *testing.T) {
	r := newRegistry()

	_, err := r.Index(tkn1)
	if !errors.Is(err, token.ErrToken) {
		t.Errorf("got %v, want ErrToken", err)
	}
}
