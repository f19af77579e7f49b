package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"P2pEx/internal/custody"
	"P2pEx/internal/engine"
	"P2pEx/internal/pricefeed"
	"P2pEx/internal/registry"
)

var (
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000AD1")
	provider = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	receiver = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	weth     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

type harness struct {
	server *httptest.Server
	engine *engine.Engine
	vault  *custody.MemVault
	feed   *pricefeed.StaticFeed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vault := custody.NewMemVault()
	feed := pricefeed.NewStaticFeed()
	eng := engine.New(engine.Config{
		AdminCheck: func(caller common.Address) bool { return caller == admin },
		Vault:      vault,
		Feed:       feed,
		Logger:     zerolog.Nop(),
	})
	api := NewHTTPServer(eng, nil, nil, zerolog.Nop())
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &harness{server: srv, engine: eng, vault: vault, feed: feed}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func (h *harness) wantStatus(t *testing.T, method, path string, body interface{}, want int) []byte {
	t.Helper()
	resp, data := h.do(t, method, path, body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d (body: %s)", method, path, resp.StatusCode, want, data)
	}
	return data
}

// setupFunded registers the provider with one payment method, lists weth and
// deposits amount through the API.
func (h *harness) setupFunded(t *testing.T, amount uint64) {
	t.Helper()
	h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": provider.Hex()}, http.StatusCreated)
	h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/payment-methods",
		registry.PaymentMethod{Name: "sepa", AcceptedCurrency: "EUR", TransferInstructions: "IBAN DE02"},
		http.StatusCreated)
	h.wantStatus(t, http.MethodPost, "/v1/tokens",
		map[string]string{"caller": admin.Hex(), "token": weth.Hex()}, http.StatusCreated)
	h.vault.Fund(provider, weth, amount)
	h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/deposits",
		map[string]interface{}{"token": weth.Hex(), "amount": amount}, http.StatusOK)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodGet, "/healthz", nil, http.StatusOK)
}

func TestProviderLifecycle(t *testing.T) {
	h := newHarness(t)

	data := h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": provider.Hex()}, http.StatusCreated)
	var view engine.ProviderView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("decode provider: %v", err)
	}
	if view.Address != provider {
		t.Errorf("Address = %s, want %s", view.Address.Hex(), provider.Hex())
	}
	if view.IsAvailable {
		t.Error("new provider should be unavailable")
	}

	// Duplicate registration is a domain error, not a server error.
	h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": provider.Hex()}, http.StatusUnprocessableEntity)

	data = h.wantStatus(t, http.MethodGet, "/v1/providers/count", nil, http.StatusOK)
	var count struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Count != 1 {
		t.Errorf("count = %d, want 1", count.Count)
	}

	h.wantStatus(t, http.MethodDelete, "/v1/providers/"+provider.Hex()+"/", nil, http.StatusNoContent)
	h.wantStatus(t, http.MethodGet, "/v1/providers/"+provider.Hex()+"/", nil, http.StatusNotFound)
}

func TestInvalidAddressRejected(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": "not-an-address"}, http.StatusBadRequest)
	h.wantStatus(t, http.MethodGet, "/v1/providers/xyz/", nil, http.StatusBadRequest)
}

func TestDepositWithdrawCustody(t *testing.T) {
	h := newHarness(t)
	h.setupFunded(t, 10)

	data := h.wantStatus(t, http.MethodGet, "/v1/custody/"+weth.Hex(), nil, http.StatusOK)
	var cust struct {
		Custody uint64 `json:"custody"`
	}
	if err := json.Unmarshal(data, &cust); err != nil {
		t.Fatalf("decode custody: %v", err)
	}
	if cust.Custody != 10 {
		t.Errorf("custody = %d, want 10", cust.Custody)
	}

	data = h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/withdrawals",
		map[string]interface{}{"token": weth.Hex(), "amount": 4}, http.StatusOK)
	var bal struct {
		Balance uint64 `json:"balance"`
	}
	if err := json.Unmarshal(data, &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.Balance != 6 {
		t.Errorf("balance = %d, want 6", bal.Balance)
	}

	// Overdraw maps to 422.
	h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/withdrawals",
		map[string]interface{}{"token": weth.Hex(), "amount": 100}, http.StatusUnprocessableEntity)
}

func TestDepositUnlistedToken(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": provider.Hex()}, http.StatusCreated)
	h.vault.Fund(provider, weth, 5)
	h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/deposits",
		map[string]interface{}{"token": weth.Hex(), "amount": 5}, http.StatusUnprocessableEntity)
}

func TestTokenListingRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodPost, "/v1/tokens",
		map[string]string{"caller": provider.Hex(), "token": weth.Hex()}, http.StatusForbidden)
	h.wantStatus(t, http.MethodPost, "/v1/tokens",
		map[string]string{"caller": admin.Hex(), "token": weth.Hex()}, http.StatusCreated)

	data := h.wantStatus(t, http.MethodGet, "/v1/tokens", nil, http.StatusOK)
	var tokens []common.Address
	if err := json.Unmarshal(data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != weth {
		t.Errorf("tokens = %v, want [%s]", tokens, weth.Hex())
	}
}

func TestPaymentMethodRoutes(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodPost, "/v1/providers",
		map[string]string{"caller": provider.Hex()}, http.StatusCreated)

	base := "/v1/providers/" + provider.Hex() + "/payment-methods"
	h.wantStatus(t, http.MethodPost, base,
		registry.PaymentMethod{Name: "sepa", AcceptedCurrency: "EUR"}, http.StatusCreated)
	h.wantStatus(t, http.MethodPost, base,
		registry.PaymentMethod{Name: "wise", AcceptedCurrency: "USD"}, http.StatusCreated)

	h.wantStatus(t, http.MethodPut, base+"/1",
		registry.PaymentMethod{Name: "revolut", AcceptedCurrency: "USD"}, http.StatusNoContent)

	data := h.wantStatus(t, http.MethodGet, base, nil, http.StatusOK)
	var methods []registry.PaymentMethod
	if err := json.Unmarshal(data, &methods); err != nil {
		t.Fatalf("decode methods: %v", err)
	}
	if len(methods) != 2 || methods[1].Name != "revolut" {
		t.Errorf("methods = %+v", methods)
	}

	// Out-of-range index maps to 422.
	h.wantStatus(t, http.MethodPut, base+"/5",
		registry.PaymentMethod{Name: "x"}, http.StatusUnprocessableEntity)
	h.wantStatus(t, http.MethodDelete, base+"/0", nil, http.StatusNoContent)

	// Replacing with a longer list than currently held is rejected.
	h.wantStatus(t, http.MethodPut, base,
		map[string]interface{}{"methods": []registry.PaymentMethod{
			{Name: "a"}, {Name: "b"}, {Name: "c"},
		}}, http.StatusUnprocessableEntity)
}

func TestTradedTokenRoutes(t *testing.T) {
	h := newHarness(t)
	h.setupFunded(t, 10)

	data := h.wantStatus(t, http.MethodGet, "/v1/tokens/"+weth.Hex(), nil, http.StatusOK)
	var idx struct {
		Index int `json:"index"`
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if idx.Index != 0 {
		t.Errorf("index = %d, want 0", idx.Index)
	}

	base := "/v1/providers/" + provider.Hex() + "/traded-tokens"
	data = h.wantStatus(t, http.MethodGet, base, nil, http.StatusOK)
	var traded []common.Address
	if err := json.Unmarshal(data, &traded); err != nil {
		t.Fatalf("decode traded tokens: %v", err)
	}
	if len(traded) != 1 || traded[0] != weth {
		t.Errorf("traded = %v, want [%s]", traded, weth.Hex())
	}

	h.wantStatus(t, http.MethodDelete, base+"/"+weth.Hex(), nil, http.StatusNoContent)
	h.wantStatus(t, http.MethodGet, base+"/"+weth.Hex(), nil, http.StatusNotFound)
	h.wantStatus(t, http.MethodPost, base,
		map[string]string{"token": weth.Hex()}, http.StatusNoContent)
}

func TestOrderFlow(t *testing.T) {
	h := newHarness(t)
	h.setupFunded(t, 10)
	h.wantStatus(t, http.MethodPost, "/v1/providers/"+provider.Hex()+"/availability",
		map[string]bool{"available": true}, http.StatusNoContent)

	data := h.wantStatus(t, http.MethodPost, "/v1/orders", map[string]interface{}{
		"receiver":             receiver.Hex(),
		"provider":             provider.Hex(),
		"payment_method_index": 0,
		"fiat_amount":          "250.00",
		"currency_code":        "EUR",
		"token":                weth.Hex(),
		"crypto_amount":        8,
	}, http.StatusCreated)
	var created struct {
		Index  uint64 `json:"index"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if created.Index != 0 {
		t.Errorf("index = %d, want 0", created.Index)
	}

	// Only the provider may complete.
	h.wantStatus(t, http.MethodPost, "/v1/orders/0/complete",
		map[string]string{"caller": receiver.Hex()}, http.StatusForbidden)

	data = h.wantStatus(t, http.MethodPost, "/v1/orders/0/complete",
		map[string]string{"caller": provider.Hex()}, http.StatusOK)
	var completed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &completed); err != nil {
		t.Fatalf("decode completed order: %v", err)
	}
	if completed.Status != "Completed" {
		t.Errorf("status = %q, want Completed", completed.Status)
	}

	// Completing a settled order is a state conflict.
	h.wantStatus(t, http.MethodPost, "/v1/orders/0/complete",
		map[string]string{"caller": provider.Hex()}, http.StatusConflict)

	if got, err := h.vault.BalanceOf(context.Background(), receiver, weth); err != nil || got != 8 {
		t.Errorf("receiver vault balance = %d, %v, want 8", got, err)
	}
}

func TestOrderNotFound(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodGet, "/v1/orders/42", nil, http.StatusNotFound)
	h.wantStatus(t, http.MethodPost, "/v1/orders/42/cancel",
		map[string]string{"caller": receiver.Hex()}, http.StatusNotFound)
}

func TestInitiateOrderUnknownProvider(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodPost, "/v1/orders", map[string]interface{}{
		"receiver":             receiver.Hex(),
		"provider":             provider.Hex(),
		"payment_method_index": 0,
		"fiat_amount":          "10",
		"currency_code":        "EUR",
		"token":                weth.Hex(),
		"crypto_amount":        1,
	}, http.StatusUnprocessableEntity)
}

func TestQuoteEndpoint(t *testing.T) {
	h := newHarness(t)
	h.feed.Set(weth, "USD", pricefeed.Price{Answer: 250000000000, Decimals: 8, Currency: "USD"})

	path := fmt.Sprintf("/v1/quote?token=%s&currency=USD&amount=%d&decimals=18",
		weth.Hex(), uint64(500000000000000000))
	data := h.wantStatus(t, http.MethodGet, path, nil, http.StatusOK)
	var quote struct {
		FiatAmount string `json:"fiat_amount"`
	}
	if err := json.Unmarshal(data, &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.FiatAmount != "1250" {
		t.Errorf("fiat_amount = %q, want 1250", quote.FiatAmount)
	}

	// Unknown token has no price.
	h.wantStatus(t, http.MethodGet,
		"/v1/quote?token="+receiver.Hex()+"&currency=USD&amount=1", nil, http.StatusNotFound)
}

func TestAuditEndpointsWithoutDatabase(t *testing.T) {
	h := newHarness(t)
	h.wantStatus(t, http.MethodGet, "/v1/audit/events", nil, http.StatusServiceUnavailable)
	h.wantStatus(t, http.MethodGet, "/v1/audit/orders", nil, http.StatusServiceUnavailable)
}
