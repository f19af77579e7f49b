// Package server exposes the engine over HTTP/JSON and serves gRPC health
// checks. Callers are identified by the address field in request bodies; a
// real deployment fronts this with signature verification at the gateway.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"P2pEx/internal/custody"
	"P2pEx/internal/engine"
	"P2pEx/internal/ledger"
	"P2pEx/internal/observability"
	"P2pEx/internal/order"
	"P2pEx/internal/pricefeed"
	"P2pEx/internal/query"
	"P2pEx/internal/registry"
	"P2pEx/internal/token"
)

type HTTPServer struct {
	engine  *engine.Engine
	history *query.Service
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewHTTPServer wires the API. history may be nil when no database is
// configured; the audit endpoints then return 503.
func NewHTTPServer(eng *engine.Engine, history *query.Service, metrics *observability.Metrics, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		engine:  eng,
		history: history,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/providers", s.addProvider)
		r.Get("/providers", s.listProviders)
		r.Get("/providers/count", s.providersCount)
		r.Route("/providers/{address}", func(r chi.Router) {
			r.Get("/", s.getProvider)
			r.Delete("/", s.deleteProvider)
			r.Post("/availability", s.setAvailability)
			r.Post("/time-limit", s.setTimeLimit)
			r.Get("/payment-methods", s.listPaymentMethods)
			r.Post("/payment-methods", s.addPaymentMethod)
			r.Put("/payment-methods", s.replacePaymentMethods)
			r.Put("/payment-methods/{index}", s.updatePaymentMethod)
			r.Delete("/payment-methods/{index}", s.removePaymentMethod)
			r.Get("/traded-tokens", s.listTradedTokens)
			r.Post("/traded-tokens", s.addTradedToken)
			r.Get("/traded-tokens/{token}", s.tradedTokenIndex)
			r.Delete("/traded-tokens/{token}", s.removeTradedToken)
			r.Get("/balances", s.providerBalances)
			r.Post("/deposits", s.deposit)
			r.Post("/withdrawals", s.withdraw)
		})

		r.Post("/tokens", s.makeTokenTradeable)
		r.Get("/tokens", s.listTokens)
		r.Get("/tokens/{token}", s.tokenIndex)
		r.Get("/custody/{token}", s.custodyAmount)
		r.Get("/deposited/{token}/{provider}", s.depositedAmount)

		r.Post("/orders", s.initiateOrder)
		r.Get("/orders/count", s.ordersCount)
		r.Get("/orders/{index}", s.getOrder)
		r.Post("/orders/{index}/complete", s.completeOrder)
		r.Post("/orders/{index}/cancel", s.cancelOrder)
		r.Post("/orders/{index}/dispute", s.disputeOrder)

		r.Get("/quote", s.quote)

		r.Get("/audit/events", s.auditEvents)
		r.Get("/audit/orders", s.auditOrders)
	})

	return r
}

func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics != nil {
			pattern := chi.RouteContext(r.Context()).RoutePattern()
			s.metrics.QueryRequests.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
			s.metrics.QueryDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
			if ww.Status() >= 400 {
				s.metrics.QueryErrors.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
			}
		}
	})
}

// --- Helpers ---

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, order.ErrUnauthorized), errors.Is(err, token.ErrOnlyOwner):
		status = http.StatusForbidden
	case errors.Is(err, order.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, order.ErrOrder), errors.Is(err, pricefeed.ErrNoPrice):
		status = http.StatusNotFound
	case errors.Is(err, custody.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, registry.ErrProvider),
		errors.Is(err, registry.ErrPaymentMethod),
		errors.Is(err, registry.ErrMaxReached),
		errors.Is(err, registry.ErrTimeLimit),
		errors.Is(err, token.ErrToken),
		errors.Is(err, ledger.ErrBalance),
		errors.Is(err, ledger.ErrZeroDeposits),
		errors.Is(err, ledger.ErrHasDeposits):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func parseAddress(r *http.Request, param string) (common.Address, bool) {
	raw := chi.URLParam(r, param)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func badAddress(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address"})
}

// --- Provider handlers ---

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *HTTPServer) addProvider(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Caller) {
		badAddress(w)
		return
	}
	caller := common.HexToAddress(req.Caller)
	if err := s.engine.AddProvider(caller); err != nil {
		writeError(w, err)
		return
	}
	p, _ := s.engine.Provider(caller)
	writeJSON(w, http.StatusCreated, p)
}

func (s *HTTPServer) deleteProvider(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	if err := s.engine.DeleteProvider(addr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) getProvider(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	p, err := s.engine.Provider(addr)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) listProviders(w http.ResponseWriter, r *http.Request) {
	available := r.URL.Query().Get("available") != "false"
	writeJSON(w, http.StatusOK, s.engine.ProvidersByAvailability(available))
}

func (s *HTTPServer) providersCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.engine.ProvidersCount()})
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *HTTPServer) setAvailability(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req availabilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	if req.Available {
		err = s.engine.BecomeAvailable(addr)
	} else {
		err = s.engine.BecomeUnavailable(addr)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type timeLimitRequest struct {
	LimitSeconds int64 `json:"limit_seconds"`
}

func (s *HTTPServer) setTimeLimit(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req timeLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.UpdateAutoCompleteTimeLimit(addr, time.Duration(req.LimitSeconds)*time.Second); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Payment method handlers ---

func (s *HTTPServer) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	methods, err := s.engine.PaymentMethods(addr)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (s *HTTPServer) addPaymentMethod(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var pm registry.PaymentMethod
	if !decodeBody(w, r, &pm) {
		return
	}
	if err := s.engine.AddPaymentMethod(addr, pm); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type replaceMethodsRequest struct {
	Methods []registry.PaymentMethod `json:"methods"`
}

func (s *HTTPServer) replacePaymentMethods(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req replaceMethodsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.UpdateAllPaymentMethods(addr, req.Methods); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseIndex(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func (s *HTTPServer) updatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	idx, ok := parseIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid index"})
		return
	}
	var pm registry.PaymentMethod
	if !decodeBody(w, r, &pm) {
		return
	}
	if err := s.engine.UpdatePaymentMethod(addr, idx, pm); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) removePaymentMethod(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	idx, ok := parseIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid index"})
		return
	}
	if err := s.engine.RemovePaymentMethod(addr, idx); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Token handlers ---

type listTokenRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

func (s *HTTPServer) makeTokenTradeable(w http.ResponseWriter, r *http.Request) {
	var req listTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Token) {
		badAddress(w)
		return
	}
	if err := s.engine.MakeTokenTradeable(common.HexToAddress(req.Caller), common.HexToAddress(req.Token)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *HTTPServer) listTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.TradeableTokens())
}

func (s *HTTPServer) listTradedTokens(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	p, err := s.engine.Provider(addr)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p.TradedTokens)
}

func (s *HTTPServer) tokenIndex(w http.ResponseWriter, r *http.Request) {
	tok, ok := parseAddress(r, "token")
	if !ok {
		badAddress(w)
		return
	}
	idx, err := s.engine.TradeableTokenIndex(tok)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"index": idx})
}

type tradedTokenRequest struct {
	Token string `json:"token"`
}

func (s *HTTPServer) addTradedToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req tradedTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Token) {
		badAddress(w)
		return
	}
	if err := s.engine.AddCurrentlyTradedToken(addr, common.HexToAddress(req.Token)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) removeTradedToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	tok, ok := parseAddress(r, "token")
	if !ok {
		badAddress(w)
		return
	}
	if err := s.engine.RemoveCurrentlyTradedToken(addr, tok); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) tradedTokenIndex(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	tok, ok := parseAddress(r, "token")
	if !ok {
		badAddress(w)
		return
	}
	idx, err := s.engine.TradedTokenIndex(addr, tok)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"index": idx})
}

// --- Ledger handlers ---

type transferRequest struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

func (s *HTTPServer) deposit(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Token) {
		badAddress(w)
		return
	}
	tok := common.HexToAddress(req.Token)
	if err := s.engine.Deposit(r.Context(), addr, tok, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.engine.Deposited(addr, tok)})
}

func (s *HTTPServer) withdraw(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Token) {
		badAddress(w)
		return
	}
	tok := common.HexToAddress(req.Token)
	if err := s.engine.Withdraw(r.Context(), addr, tok, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.engine.Deposited(addr, tok)})
}

func (s *HTTPServer) providerBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r, "address")
	if !ok {
		badAddress(w)
		return
	}
	balances := s.engine.Balances(addr)
	out := make(map[string]uint64, len(balances))
	for tok, amt := range balances {
		out[tok.Hex()] = amt
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) custodyAmount(w http.ResponseWriter, r *http.Request) {
	tok, ok := parseAddress(r, "token")
	if !ok {
		badAddress(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"custody": s.engine.Custody(tok)})
}

func (s *HTTPServer) depositedAmount(w http.ResponseWriter, r *http.Request) {
	tok, ok := parseAddress(r, "token")
	if !ok {
		badAddress(w)
		return
	}
	prov, ok := parseAddress(r, "provider")
	if !ok {
		badAddress(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"deposited": s.engine.Deposited(prov, tok)})
}

// --- Order handlers ---

type initiateOrderRequest struct {
	Receiver           string          `json:"receiver"`
	Provider           string          `json:"provider"`
	PaymentMethodIndex int             `json:"payment_method_index"`
	FiatAmount         decimal.Decimal `json:"fiat_amount"`
	CurrencyCode       string          `json:"currency_code"`
	Token              string          `json:"token"`
	CryptoAmount       uint64          `json:"crypto_amount"`
}

func (s *HTTPServer) initiateOrder(w http.ResponseWriter, r *http.Request) {
	var req initiateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Receiver) || !common.IsHexAddress(req.Provider) || !common.IsHexAddress(req.Token) {
		badAddress(w)
		return
	}
	index, err := s.engine.InitiateOrder(
		common.HexToAddress(req.Receiver),
		common.HexToAddress(req.Provider),
		req.PaymentMethodIndex,
		req.FiatAmount,
		req.CurrencyCode,
		common.HexToAddress(req.Token),
		req.CryptoAmount,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	o, _ := s.engine.Order(index)
	writeJSON(w, http.StatusCreated, o)
}

func parseOrderIndex(r *http.Request) (uint64, bool) {
	idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (s *HTTPServer) getOrder(w http.ResponseWriter, r *http.Request) {
	idx, ok := parseOrderIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid index"})
		return
	}
	o, err := s.engine.Order(idx)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *HTTPServer) ordersCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"count": s.engine.OrdersCount()})
}

func (s *HTTPServer) orderTransition(w http.ResponseWriter, r *http.Request,
	apply func(caller common.Address, index uint64) error) {
	idx, ok := parseOrderIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid index"})
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Caller) {
		badAddress(w)
		return
	}
	if err := apply(common.HexToAddress(req.Caller), idx); err != nil {
		writeError(w, err)
		return
	}
	o, _ := s.engine.Order(idx)
	writeJSON(w, http.StatusOK, o)
}

func (s *HTTPServer) completeOrder(w http.ResponseWriter, r *http.Request) {
	s.orderTransition(w, r, func(caller common.Address, index uint64) error {
		return s.engine.CompleteOrder(r.Context(), caller, index)
	})
}

func (s *HTTPServer) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.orderTransition(w, r, s.engine.CancelOrder)
}

func (s *HTTPServer) disputeOrder(w http.ResponseWriter, r *http.Request) {
	s.orderTransition(w, r, s.engine.DisputeOrder)
}

// --- Quote handler ---

func (s *HTTPServer) quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !common.IsHexAddress(q.Get("token")) {
		badAddress(w)
		return
	}
	tok := common.HexToAddress(q.Get("token"))
	currency := q.Get("currency")
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
		return
	}
	decimals := int32(18)
	if raw := q.Get("decimals"); raw != "" {
		d, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || d < 0 || d > 77 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid decimals"})
			return
		}
		decimals = int32(d)
	}

	fiat, err := s.engine.Quote(r.Context(), tok, currency, amount, decimals)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"fiat_amount": fiat.String(),
		"currency":    currency,
	})
}

// --- Audit handlers ---

func (s *HTTPServer) auditEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "audit log not configured"})
		return
	}
	q := r.URL.Query()
	after := int64(-1)
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid cursor"})
			return
		}
		after = v
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	events, err := s.history.Events(r.Context(), q.Get("actor"), after, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit events query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *HTTPServer) auditOrders(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "audit log not configured"})
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, err := s.history.Orders(r.Context(), query.OrderFilter{
		Provider: q.Get("provider"),
		Receiver: q.Get("receiver"),
		Status:   q.Get("status"),
	}, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit orders query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
