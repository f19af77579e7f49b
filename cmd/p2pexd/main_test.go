package main

import (
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"P2pEx/internal/engine"
	"P2pEx/internal/event"
	"P2pEx/internal/order"
)

func TestToPersistOutput(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &event.Envelope{
		Sequence:  7,
		EventID:   uuid.New(),
		Type:      event.EventTypeOrderInitiated,
		Actor:     common.HexToAddress("0xB0B0000000000000000000000000000000000002"),
		Timestamp: now,
		Payload:   []byte(`{}`),
	}

	out := toPersistOutput(engine.Output{Envelope: env})
	if out.EventRow.Sequence != 7 || out.EventRow.EventType != "OrderInitiated" {
		t.Errorf("event row = %+v", out.EventRow)
	}
	if out.OrderRow != nil {
		t.Error("order row should be nil without an order")
	}

	// Amounts above the signed 64-bit range must survive the conversion.
	o := &order.Order{
		ID:           uuid.New(),
		Index:        3,
		Provider:     common.HexToAddress("0xA11CE00000000000000000000000000000000001"),
		Receiver:     env.Actor,
		FiatAmount:   decimal.RequireFromString("250.00"),
		CurrencyCode: "EUR",
		CryptoAmount: math.MaxUint64,
		Status:       order.StatusInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
		Deadline:     now.Add(4 * time.Hour),
	}
	out = toPersistOutput(engine.Output{Envelope: env, Order: o})
	if out.OrderRow == nil {
		t.Fatal("order row missing")
	}
	if out.OrderRow.CryptoAmount != "18446744073709551615" {
		t.Errorf("crypto amount = %q, want full uint64 value", out.OrderRow.CryptoAmount)
	}
	if out.OrderRow.Status != "InProgress" || out.OrderRow.FiatAmount != "250" {
		t.Errorf("order row = %+v", out.OrderRow)
	}
}
