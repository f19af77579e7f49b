// Package engine is the serialized core of the escrow ledger. Every public
// operation takes the engine mutex, validates its guards against the live
// registries and ledger, calls external collaborators before mutating any
// state, and emits an audit event on success. No operation ever observes a
// partially-applied effect of another.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"P2pEx/internal/custody"
	"P2pEx/internal/event"
	"P2pEx/internal/ledger"
	"P2pEx/internal/observability"
	"P2pEx/internal/order"
	"P2pEx/internal/pricefeed"
	"P2pEx/internal/registry"
	"P2pEx/internal/token"
)

// Output is what the engine emits per applied operation. Order is set only
// when the operation touched an order, and is a point-in-time copy: the
// consuming goroutines own it outright.
type Output struct {
	Envelope *event.Envelope
	Order    *order.Order
}

// Config wires the engine's collaborators. Clock defaults to time.Now.
type Config struct {
	AdminCheck  token.AdminCheck
	Vault       custody.Vault
	Feed        pricefeed.Feed
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
	Clock       func() time.Time
	PersistChan chan<- Output
	PublishChan chan<- Output
}

// Engine owns all mutable escrow state: the provider registry, the token
// registry, the deposit ledger and the order book.
type Engine struct {
	mu sync.Mutex

	sequence  int64
	providers *registry.Registry
	tokens    *token.Registry
	deposits  *ledger.Ledger
	validator *ledger.InvariantValidator
	book      *order.Book

	vault   custody.Vault
	feed    pricefeed.Feed
	metrics *observability.Metrics
	logger  zerolog.Logger
	clock   func() time.Time

	persistChan chan<- Output
	publishChan chan<- Output
}

func New(cfg Config) *Engine {
	deposits := ledger.New()
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		providers:   registry.New(),
		tokens:      token.NewRegistry(cfg.AdminCheck),
		deposits:    deposits,
		validator:   ledger.NewInvariantValidator(deposits),
		book:        order.NewBook(),
		vault:       cfg.Vault,
		feed:        cfg.Feed,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		clock:       clock,
		persistChan: cfg.PersistChan,
		publishChan: cfg.PublishChan,
	}
}

// apply finalizes a successful operation: post-checks the custody invariant,
// builds the envelope and emits it. Callers must hold the mutex.
func (e *Engine) apply(op string, start time.Time, actor common.Address, payload event.Event, ord *order.Order) {
	if err := e.validator.ValidateAllCustodySums(); err != nil {
		panic(fmt.Sprintf("FATAL: custody invariant violated after %s: %v", op, err))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: unmarshalable payload for %s: %v", op, err))
	}

	envelope := &event.Envelope{
		Sequence:  e.sequence,
		EventID:   uuid.New(),
		Type:      payload.EventType(),
		Actor:     actor,
		Timestamp: e.clock(),
		Payload:   body,
	}
	e.sequence++

	out := Output{Envelope: envelope}
	if ord != nil {
		// Copy under the mutex. The persistence and publish goroutines must
		// never alias book state the engine keeps mutating.
		snapshot := *ord
		out.Order = &snapshot
	}

	if e.persistChan != nil {
		// Blocking send, the engine stalls until the persistence worker
		// drains. No audit event is ever lost.
		select {
		case e.persistChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- out
		}
	}
	if e.publishChan != nil {
		// Non-blocking send, drop on full. Consumers rebuild from the
		// audit log if they fall behind.
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	e.logger.Info().
		Str("operation", op).
		Int64("sequence", envelope.Sequence).
		Str("event_type", envelope.Type.String()).
		Str("actor", actor.Hex()).
		Msg("operation applied")

	if e.metrics != nil {
		e.metrics.EngineOpsApplied.WithLabelValues(op).Inc()
		e.metrics.EngineOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		e.metrics.ProvidersRegistered.Set(float64(e.providers.Count()))
		e.metrics.ProvidersAvailable.Set(float64(len(e.providers.ListByAvailability(true))))
		e.metrics.TokensTradeable.Set(float64(e.tokens.Count()))
		e.metrics.OrdersTotal.Set(float64(e.book.Count()))
	}
}

// reject records a guard failure and returns the error unchanged.
func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.EngineOpsRejected.WithLabelValues(op, err.Error()).Inc()
	}
	e.logger.Debug().Str("operation", op).Err(err).Msg("operation rejected")
	return err
}

// --- Provider lifecycle ---

// AddProvider registers caller as a provider. One registration per address.
func (e *Engine) AddProvider(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Add(caller); err != nil {
		return e.reject("add_provider", err)
	}
	e.apply("add_provider", start, caller, &event.ProviderAdded{Provider: caller}, nil)
	return nil
}

// DeleteProvider removes caller's provider record. All deposits must have
// been withdrawn first.
func (e *Engine) DeleteProvider(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("delete_provider", err)
	}
	if err := e.deposits.AssertNoDeposits(caller); err != nil {
		return e.reject("delete_provider", err)
	}
	if err := e.providers.Delete(caller); err != nil {
		return e.reject("delete_provider", err)
	}
	e.apply("delete_provider", start, caller, &event.ProviderDeleted{Provider: caller}, nil)
	return nil
}

// BecomeAvailable marks caller open for trading. Requires at least one
// non-zero deposit to back the availability claim.
func (e *Engine) BecomeAvailable(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("become_available", err)
	}
	if !e.deposits.HasDeposits(caller) {
		return e.reject("become_available", ledger.ErrZeroDeposits)
	}
	if err := e.providers.MarkAvailable(caller); err != nil {
		return e.reject("become_available", err)
	}
	e.apply("become_available", start, caller,
		&event.AvailabilityChanged{Provider: caller, IsAvailable: true}, nil)
	return nil
}

// BecomeUnavailable always succeeds for a registered provider.
func (e *Engine) BecomeUnavailable(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.MarkUnavailable(caller); err != nil {
		return e.reject("become_unavailable", err)
	}
	e.apply("become_unavailable", start, caller,
		&event.AvailabilityChanged{Provider: caller, IsAvailable: false}, nil)
	return nil
}

// UpdateAutoCompleteTimeLimit sets caller's auto-complete window, capped at
// four hours.
func (e *Engine) UpdateAutoCompleteTimeLimit(caller common.Address, limit time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.SetAutoCompleteTimeLimit(caller, limit); err != nil {
		return e.reject("update_time_limit", err)
	}
	e.apply("update_time_limit", start, caller,
		&event.TimeLimitUpdated{Provider: caller, Limit: limit}, nil)
	return nil
}

// --- Payment methods ---

func (e *Engine) AddPaymentMethod(caller common.Address, pm registry.PaymentMethod) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.AddPaymentMethod(caller, pm); err != nil {
		return e.reject("add_payment_method", err)
	}
	methods, _ := e.providers.PaymentMethods(caller)
	e.apply("add_payment_method", start, caller, &event.PaymentMethodAdded{
		Provider:         caller,
		Index:            len(methods) - 1,
		Name:             pm.Name,
		AcceptedCurrency: pm.AcceptedCurrency,
	}, nil)
	return nil
}

func (e *Engine) RemovePaymentMethod(caller common.Address, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.RemovePaymentMethod(caller, index); err != nil {
		return e.reject("remove_payment_method", err)
	}
	e.apply("remove_payment_method", start, caller,
		&event.PaymentMethodRemoved{Provider: caller, Index: index}, nil)
	return nil
}

func (e *Engine) UpdatePaymentMethod(caller common.Address, index int, pm registry.PaymentMethod) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.UpdatePaymentMethod(caller, index, pm); err != nil {
		return e.reject("update_payment_method", err)
	}
	e.apply("update_payment_method", start, caller, &event.PaymentMethodUpdated{
		Provider:         caller,
		Index:            index,
		Name:             pm.Name,
		AcceptedCurrency: pm.AcceptedCurrency,
	}, nil)
	return nil
}

func (e *Engine) UpdateAllPaymentMethods(caller common.Address, methods []registry.PaymentMethod) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.providers.UpdateAllPaymentMethods(caller, methods); err != nil {
		return e.reject("update_all_payment_methods", err)
	}
	e.apply("update_all_payment_methods", start, caller,
		&event.PaymentMethodsReplaced{Provider: caller, Count: len(methods)}, nil)
	return nil
}

// --- Token registry ---

// MakeTokenTradeable lists tok for trading. Admin only.
func (e *Engine) MakeTokenTradeable(caller, tok common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if err := e.tokens.MakeTradeable(caller, tok); err != nil {
		return e.reject("make_token_tradeable", err)
	}
	e.apply("make_token_tradeable", start, caller, &event.TokenListed{Token: tok}, nil)
	return nil
}

// --- Deposits and withdrawals ---

// Deposit pulls amount of tok from caller's account into escrow and credits
// the ledger. The token joins the provider's traded set.
func (e *Engine) Deposit(ctx context.Context, caller, tok common.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("deposit", err)
	}
	if !e.tokens.IsTradeable(tok) {
		return e.reject("deposit", token.ErrToken)
	}
	if amount == 0 {
		return e.reject("deposit", ledger.ErrZeroDeposits)
	}

	// Transfer first. The ledger only moves after funds do.
	if err := e.vault.Pull(ctx, caller, tok, amount); err != nil {
		return e.reject("deposit", custody.ErrTransferFailed)
	}
	if err := e.deposits.Credit(caller, tok, amount); err != nil {
		// Credit only fails on overflow. Funds were already pulled, so
		// this is unrecoverable bookkeeping corruption.
		panic(fmt.Sprintf("FATAL: credit after successful pull: %v", err))
	}
	if err := e.providers.AddTradedToken(caller, tok); err != nil {
		panic(fmt.Sprintf("FATAL: traded token update for registered provider: %v", err))
	}

	e.apply("deposit", start, caller, &event.DepositMade{
		Provider: caller,
		Token:    tok,
		Amount:   amount,
		Balance:  e.deposits.Deposited(caller, tok),
	}, nil)
	if e.metrics != nil {
		e.metrics.CustodyAmount.WithLabelValues(tok.Hex()).Set(float64(e.deposits.Custody(tok)))
	}
	return nil
}

// Withdraw pushes amount of tok back to caller and debits the ledger. When
// the balance for tok reaches zero the token leaves the traded set; when no
// deposits remain at all the provider drops out of availability.
func (e *Engine) Withdraw(ctx context.Context, caller, tok common.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("withdraw", err)
	}
	if err := e.deposits.AssertDeposited(caller, tok); err != nil {
		return e.reject("withdraw", err)
	}
	if amount > e.deposits.Deposited(caller, tok) {
		return e.reject("withdraw", ledger.ErrBalance)
	}

	if err := e.vault.Push(ctx, caller, tok, amount); err != nil {
		return e.reject("withdraw", custody.ErrTransferFailed)
	}
	if err := e.deposits.Debit(caller, tok, amount); err != nil {
		panic(fmt.Sprintf("FATAL: debit after successful push: %v", err))
	}
	e.settleEmptyBalances(caller, tok)

	e.apply("withdraw", start, caller, &event.WithdrawalMade{
		Provider: caller,
		Token:    tok,
		Amount:   amount,
		Balance:  e.deposits.Deposited(caller, tok),
	}, nil)
	if e.metrics != nil {
		e.metrics.CustodyAmount.WithLabelValues(tok.Hex()).Set(float64(e.deposits.Custody(tok)))
	}
	return nil
}

// settleEmptyBalances drops tok from the traded set when its balance hits
// zero, and clears availability when nothing is deposited at all.
func (e *Engine) settleEmptyBalances(provider, tok common.Address) {
	if e.deposits.Deposited(provider, tok) == 0 {
		_ = e.providers.RemoveTradedToken(provider, tok)
	}
	if !e.deposits.HasDeposits(provider) {
		_ = e.providers.MarkUnavailable(provider)
	}
}

// AddCurrentlyTradedToken records tok in caller's traded set without a
// deposit. Re-adding a present token is accepted and emits nothing.
func (e *Engine) AddCurrentlyTradedToken(caller, tok common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("add_traded_token", err)
	}
	if !e.tokens.IsTradeable(tok) {
		return e.reject("add_traded_token", token.ErrToken)
	}
	if _, err := e.providers.TradedTokenIndex(caller, tok); err == nil {
		return nil
	}
	if err := e.providers.AddTradedToken(caller, tok); err != nil {
		return e.reject("add_traded_token", err)
	}
	e.apply("add_traded_token", start, caller, &event.TradedTokenAdded{
		Provider: caller,
		Token:    tok,
	}, nil)
	return nil
}

// RemoveCurrentlyTradedToken drops tok from caller's traded set.
func (e *Engine) RemoveCurrentlyTradedToken(caller, tok common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	if _, err := e.providers.Get(caller); err != nil {
		return e.reject("remove_traded_token", err)
	}
	if err := e.providers.RemoveTradedToken(caller, tok); err != nil {
		return e.reject("remove_traded_token", err)
	}
	e.apply("remove_traded_token", start, caller, &event.TradedTokenRemoved{
		Provider: caller,
		Token:    tok,
	}, nil)
	return nil
}

// --- Order lifecycle ---

// InitiateOrder opens a trade by caller (the receiver) against provider's
// advertised payment method and deposited balance. The payment method is
// snapshotted so later edits cannot change an open trade. Funds are not
// reserved; completion re-checks the balance.
func (e *Engine) InitiateOrder(
	caller, provider common.Address,
	paymentMethodIndex int,
	fiatAmount decimal.Decimal,
	currencyCode string,
	tok common.Address,
	cryptoAmount uint64,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	p, err := e.providers.Get(provider)
	if err != nil {
		return 0, e.reject("initiate_order", err)
	}
	if paymentMethodIndex < 0 || paymentMethodIndex >= len(p.PaymentMethods) {
		return 0, e.reject("initiate_order", registry.ErrPaymentMethod)
	}
	if cryptoAmount > e.deposits.Deposited(provider, tok) {
		return 0, e.reject("initiate_order", ledger.ErrBalance)
	}
	if !p.IsAvailable {
		return 0, e.reject("initiate_order", registry.ErrProvider)
	}

	now := e.clock()
	o := &order.Order{
		ID:            uuid.New(),
		Provider:      provider,
		Receiver:      caller,
		PaymentMethod: p.PaymentMethods[paymentMethodIndex],
		FiatAmount:    fiatAmount,
		CurrencyCode:  currencyCode,
		Token:         tok,
		CryptoAmount:  cryptoAmount,
		Status:        order.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
		Deadline:      now.Add(p.AutoCompleteTimeLimit),
	}
	index := e.book.Append(o)

	e.apply("initiate_order", start, caller, &event.OrderInitiated{
		OrderID:      o.ID,
		OrderIndex:   index,
		Provider:     provider,
		Receiver:     caller,
		Token:        tok,
		CryptoAmount: cryptoAmount,
		FiatAmount:   fiatAmount,
		CurrencyCode: currencyCode,
	}, o)
	if e.metrics != nil {
		e.metrics.OrdersByStatus.WithLabelValues(order.StatusInProgress.String()).Inc()
	}
	return index, nil
}

// CompleteOrder releases the escrowed crypto to the receiver. Only the
// order's provider may complete. The deposited balance is re-checked here
// because initiation does not reserve funds.
func (e *Engine) CompleteOrder(ctx context.Context, caller common.Address, index uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	o, err := e.book.Get(index)
	if err != nil {
		return e.reject("complete_order", err)
	}
	if caller != o.Provider {
		return e.reject("complete_order", order.ErrUnauthorized)
	}
	if o.Status != order.StatusInProgress {
		return e.reject("complete_order", order.ErrInvalidState)
	}
	if o.CryptoAmount > e.deposits.Deposited(o.Provider, o.Token) {
		return e.reject("complete_order", ledger.ErrBalance)
	}

	if err := e.vault.Push(ctx, o.Receiver, o.Token, o.CryptoAmount); err != nil {
		return e.reject("complete_order", custody.ErrTransferFailed)
	}
	if err := e.deposits.Debit(o.Provider, o.Token, o.CryptoAmount); err != nil {
		panic(fmt.Sprintf("FATAL: debit after successful push: %v", err))
	}
	if err := o.Transition(order.StatusCompleted, e.clock()); err != nil {
		panic(fmt.Sprintf("FATAL: guarded transition rejected: %v", err))
	}
	e.settleEmptyBalances(o.Provider, o.Token)

	e.apply("complete_order", start, caller, &event.OrderCompleted{
		OrderID:      o.ID,
		OrderIndex:   index,
		Provider:     o.Provider,
		Receiver:     o.Receiver,
		Token:        o.Token,
		CryptoAmount: o.CryptoAmount,
	}, o)
	if e.metrics != nil {
		e.metrics.OrdersByStatus.WithLabelValues(order.StatusCompleted.String()).Inc()
		e.metrics.CustodyAmount.WithLabelValues(o.Token.Hex()).Set(float64(e.deposits.Custody(o.Token)))
	}
	return nil
}

// CancelOrder abandons an in-progress trade. Only the receiver may cancel;
// the ledger is untouched.
func (e *Engine) CancelOrder(caller common.Address, index uint64) error {
	return e.terminate("cancel_order", caller, index, order.StatusCancelled)
}

// DisputeOrder freezes an in-progress trade pending external moderation.
// Only the receiver may dispute; the ledger is untouched.
func (e *Engine) DisputeOrder(caller common.Address, index uint64) error {
	return e.terminate("dispute_order", caller, index, order.StatusDisputedWithMod)
}

func (e *Engine) terminate(op string, caller common.Address, index uint64, next order.Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.clock()

	o, err := e.book.Get(index)
	if err != nil {
		return e.reject(op, err)
	}
	if caller != o.Receiver {
		return e.reject(op, order.ErrUnauthorized)
	}
	if err := o.Transition(next, e.clock()); err != nil {
		return e.reject(op, err)
	}

	var payload event.Event
	if next == order.StatusCancelled {
		payload = &event.OrderCancelled{OrderID: o.ID, OrderIndex: index}
	} else {
		payload = &event.OrderDisputed{OrderID: o.ID, OrderIndex: index}
	}
	e.apply(op, start, caller, payload, o)
	if e.metrics != nil {
		e.metrics.OrdersByStatus.WithLabelValues(next.String()).Inc()
	}
	return nil
}

// --- Quotes ---

// Quote converts amount base units of tok into fiat using the configured
// price feed. Read-only.
func (e *Engine) Quote(ctx context.Context, tok common.Address, currency string, amount uint64, tokenDecimals int32) (decimal.Decimal, error) {
	if e.feed == nil {
		return decimal.Zero, pricefeed.ErrNoPrice
	}
	start := time.Now()
	price, err := e.feed.Quote(ctx, tok, currency)
	if e.metrics != nil {
		e.metrics.PriceFeedDuration.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.PriceFeedRequests.WithLabelValues(status).Inc()
	}
	if err != nil {
		return decimal.Zero, err
	}
	return price.Fiat(amount, tokenDecimals), nil
}
