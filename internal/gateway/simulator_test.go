package gateway

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSimulator_HappyPath(t *testing.T) {
	sim := NewSimulator(0, 0, rand.NewSource(1))
	ctx := context.Background()

	intent, err := sim.CreateIntent(ctx, decimal.RequireFromString("1155.50"), "inr", map[string]string{"order_id": "o1"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if !strings.HasPrefix(intent.ID, "pi_") {
		t.Errorf("intent id: got %q, want pi_ prefix", intent.ID)
	}
	if intent.Amount != 115550 {
		t.Errorf("amount: got %d, want 115550", intent.Amount)
	}

	conf, err := sim.Confirm(ctx, intent.ID, MethodDetails{
		Type: "card",
		Card: &CardDetails{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030},
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !strings.HasPrefix(conf.ChargeID, "ch_") {
		t.Errorf("charge id: got %q, want ch_ prefix", conf.ChargeID)
	}
	if conf.CardBrand != "visa" || conf.CardLast4 != "4242" {
		t.Errorf("card: got %s/%s, want visa/4242", conf.CardBrand, conf.CardLast4)
	}

	ref, err := sim.Refund(ctx, intent.ID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !strings.HasPrefix(ref.ID, "re_") || ref.Amount != 10000 {
		t.Errorf("refund: got %+v", ref)
	}
}

func TestSimulator_AlwaysDeclines(t *testing.T) {
	sim := NewSimulator(1, 0, rand.NewSource(1))

	_, err := sim.Confirm(context.Background(), "pi_x", MethodDetails{Type: "upi", UPI: &UPIDetails{VPA: "a@upi"}})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
}

func TestSimulator_HonoursContext(t *testing.T) {
	sim := NewSimulator(0, time.Hour, rand.NewSource(1))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.Confirm(ctx, "pi_x", MethodDetails{Type: "wallet"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCardBrand(t *testing.T) {
	tests := map[string]string{
		"4111111111111111": "visa",
		"5500000000000004": "mastercard",
		"340000000000009":  "amex",
		"6011000000000004": "discover",
		"3530111333300000": "jcb",
		"9999":             "unknown",
		"":                 "unknown",
	}
	for number, want := range tests {
		if got := CardBrand(number); got != want {
			t.Errorf("CardBrand(%q): got %s, want %s", number, got, want)
		}
	}
}

func TestMinorUnits(t *testing.T) {
	if got := MinorUnits(decimal.RequireFromString("10.005")); got != 1001 {
		t.Errorf("got %d, want 1001", got)
	}
}
