package registry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"P2pEx/internal/token"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	weth  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func mustAdd(t *testing.T, r *Registry, addr common.Address) *Provider {
	t.Helper()
	p, err := r.Add(addr)
	if err != nil {
		t.Fatalf("Add(%s): %v", addr.Hex(), err)
	}
	return p
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestAddSetsDefaults(t *testing.T) {
	r := New()
	p := mustAdd(t, r, alice)

	if p.IsAvailable {
		t.Error("new provider should start unavailable")
	}
	if p.AutoCompleteTimeLimit != 4*time.Hour {
		t.Errorf("AutoCompleteTimeLimit = %v, want 4h", p.AutoCompleteTimeLimit)
	}
	if len(p.PaymentMethods) != 0 {
		t.Errorf("PaymentMethods len = %d, want 0", len(p.PaymentMethods))
	}
	if p.TradedTokens.Len() != 0 {
		t.Errorf("TradedTokens len = %d, want 0", p.TradedTokens.Len())
	}
}

func TestAddTwiceFails(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)

	if _, err := r.Add(alice); !errors.Is(err, ErrProvider) {
		t.Errorf("second Add err = %v, want ErrProvider", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestDelete(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)
	mustAdd(t, r, bob)

	if err := r.Delete(alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if _, err := r.Get(alice); !errors.Is(err, ErrProvider) {
		t.Errorf("Get after delete err = %v, want ErrProvider", err)
	}
	if err := r.Delete(alice); !errors.Is(err, ErrProvider) {
		t.Errorf("double Delete err = %v, want ErrProvider", err)
	}
}

func TestListByAvailability(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)
	mustAdd(t, r, bob)
	if err := r.MarkAvailable(bob); err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}

	avail := r.ListByAvailability(true)
	if len(avail) != 1 || avail[0].Address != bob {
		t.Errorf("available list = %v, want [bob]", avail)
	}
	unavail := r.ListByAvailability(false)
	if len(unavail) != 1 || unavail[0].Address != alice {
		t.Errorf("unavailable list = %v, want [alice]", unavail)
	}
}

// ---------------------------------------------------------------------------
// Payment methods
// ---------------------------------------------------------------------------

func pm(n int) PaymentMethod {
	return PaymentMethod{
		Name:                 fmt.Sprintf("bank-%d", n),
		AcceptedCurrency:     "USD",
		TransferInstructions: fmt.Sprintf("account %d", n),
	}
}

func TestAddPaymentMethodCap(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)

	for i := 0; i < MaxPaymentMethods; i++ {
		if err := r.AddPaymentMethod(alice, pm(i)); err != nil {
			t.Fatalf("AddPaymentMethod %d: %v", i, err)
		}
	}
	if err := r.AddPaymentMethod(alice, pm(MaxPaymentMethods)); !errors.Is(err, ErrMaxReached) {
		t.Errorf("33rd add err = %v, want ErrMaxReached", err)
	}

	got, err := r.PaymentMethods(alice)
	if err != nil {
		t.Fatalf("PaymentMethods: %v", err)
	}
	if len(got) != MaxPaymentMethods {
		t.Errorf("len = %d, want %d", len(got), MaxPaymentMethods)
	}
}

func TestAddPaymentMethodUnregistered(t *testing.T) {
	r := New()
	if err := r.AddPaymentMethod(alice, pm(0)); !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestRemovePaymentMethodSwapsLast(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)
	for i := 0; i < 3; i++ {
		if err := r.AddPaymentMethod(alice, pm(i)); err != nil {
			t.Fatalf("AddPaymentMethod: %v", err)
		}
	}

	if err := r.RemovePaymentMethod(alice, 0); err != nil {
		t.Fatalf("RemovePaymentMethod: %v", err)
	}
	got, _ := r.PaymentMethods(alice)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != pm(2) {
		t.Errorf("slot 0 = %+v, want last entry swapped in", got[0])
	}

	if err := r.RemovePaymentMethod(alice, 2); !errors.Is(err, ErrPaymentMethod) {
		t.Errorf("out-of-range remove err = %v, want ErrPaymentMethod", err)
	}
	if err := r.RemovePaymentMethod(alice, -1); !errors.Is(err, ErrPaymentMethod) {
		t.Errorf("negative index err = %v, want ErrPaymentMethod", err)
	}
}

func TestUpdatePaymentMethod(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)
	if err := r.AddPaymentMethod(alice, pm(0)); err != nil {
		t.Fatalf("AddPaymentMethod: %v", err)
	}

	next := PaymentMethod{Name: "revolut", AcceptedCurrency: "EUR", TransferInstructions: "@alice"}
	if err := r.UpdatePaymentMethod(alice, 0, next); err != nil {
		t.Fatalf("UpdatePaymentMethod: %v", err)
	}
	got, _ := r.PaymentMethods(alice)
	if got[0] != next {
		t.Errorf("slot 0 = %+v, want %+v", got[0], next)
	}

	if err := r.UpdatePaymentMethod(alice, 1, next); !errors.Is(err, ErrPaymentMethod) {
		t.Errorf("out-of-range update err = %v, want ErrPaymentMethod", err)
	}
}

func TestUpdateAllPaymentMethods(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)
	for i := 0; i < 3; i++ {
		if err := r.AddPaymentMethod(alice, pm(i)); err != nil {
			t.Fatalf("AddPaymentMethod: %v", err)
		}
	}

	// Longer replacement list is rejected.
	long := []PaymentMethod{pm(10), pm(11), pm(12), pm(13)}
	if err := r.UpdateAllPaymentMethods(alice, long); !errors.Is(err, ErrPaymentMethod) {
		t.Errorf("oversized update err = %v, want ErrPaymentMethod", err)
	}

	// Equal length replaces everything.
	eq := []PaymentMethod{pm(20), pm(21), pm(22)}
	if err := r.UpdateAllPaymentMethods(alice, eq); err != nil {
		t.Fatalf("equal-length update: %v", err)
	}
	got, _ := r.PaymentMethods(alice)
	for i := range eq {
		if got[i] != eq[i] {
			t.Errorf("slot %d = %+v, want %+v", i, got[i], eq[i])
		}
	}

	// Shorter replacement is positional; trailing entries stay put.
	short := []PaymentMethod{pm(30)}
	if err := r.UpdateAllPaymentMethods(alice, short); err != nil {
		t.Fatalf("short update: %v", err)
	}
	got, _ = r.PaymentMethods(alice)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != pm(30) {
		t.Errorf("slot 0 = %+v, want %+v", got[0], pm(30))
	}
	if got[1] != pm(21) || got[2] != pm(22) {
		t.Errorf("trailing slots changed: %+v", got[1:])
	}
}

// ---------------------------------------------------------------------------
// Availability and time limit
// ---------------------------------------------------------------------------

func TestAvailabilityFlags(t *testing.T) {
	r := New()
	p := mustAdd(t, r, alice)

	if err := r.MarkAvailable(alice); err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if !p.IsAvailable {
		t.Error("provider should be available")
	}
	if err := r.MarkUnavailable(alice); err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	if p.IsAvailable {
		t.Error("provider should be unavailable")
	}
	if err := r.MarkAvailable(bob); !errors.Is(err, ErrProvider) {
		t.Errorf("unregistered MarkAvailable err = %v, want ErrProvider", err)
	}
}

func TestSetAutoCompleteTimeLimit(t *testing.T) {
	r := New()
	p := mustAdd(t, r, alice)

	if err := r.SetAutoCompleteTimeLimit(alice, 90*time.Minute); err != nil {
		t.Fatalf("SetAutoCompleteTimeLimit: %v", err)
	}
	if p.AutoCompleteTimeLimit != 90*time.Minute {
		t.Errorf("limit = %v, want 90m", p.AutoCompleteTimeLimit)
	}

	for _, bad := range []time.Duration{0, -time.Hour, 4*time.Hour + time.Second} {
		if err := r.SetAutoCompleteTimeLimit(alice, bad); !errors.Is(err, ErrTimeLimit) {
			t.Errorf("limit %v err = %v, want ErrTimeLimit", bad, err)
		}
	}
	// The bound itself is accepted.
	if err := r.SetAutoCompleteTimeLimit(alice, 4*time.Hour); err != nil {
		t.Errorf("limit 4h err = %v, want nil", err)
	}
}

// ---------------------------------------------------------------------------
// Traded tokens
// ---------------------------------------------------------------------------

func TestTradedTokens(t *testing.T) {
	r := New()
	mustAdd(t, r, alice)

	if err := r.AddTradedToken(alice, weth); err != nil {
		t.Fatalf("AddTradedToken: %v", err)
	}
	// Re-adding is a no-op.
	if err := r.AddTradedToken(alice, weth); err != nil {
		t.Errorf("duplicate AddTradedToken err = %v, want nil", err)
	}
	if err := r.AddTradedToken(alice, usdc); err != nil {
		t.Fatalf("AddTradedToken: %v", err)
	}

	toks, err := r.TradedTokens(alice)
	if err != nil {
		t.Fatalf("TradedTokens: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("len = %d, want 2", len(toks))
	}

	idx, err := r.TradedTokenIndex(alice, usdc)
	if err != nil {
		t.Fatalf("TradedTokenIndex: %v", err)
	}
	if toks[idx] != usdc {
		t.Errorf("index %d resolves to %s, want %s", idx, toks[idx].Hex(), usdc.Hex())
	}

	if err := r.RemoveTradedToken(alice, weth); err != nil {
		t.Fatalf("RemoveTradedToken: %v", err)
	}
	if err := r.RemoveTradedToken(alice, weth); !errors.Is(err, token.ErrToken) {
		t.Errorf("remove absent err = %v, want token.ErrToken", err)
	}
	if _, err := r.TradedTokenIndex(alice, weth); !errors.Is(err, token.ErrToken) {
		t.Errorf("index of absent err = %v, want token.ErrToken", err)
	}
}
