// Package gateway talks to the card/UPI/wallet payment processor. The
// service layer depends only on the Gateway interface; Simulator stands in
// for a real PSP.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrDeclined is returned when the processor refuses the charge.
var ErrDeclined = errors.New("payment declined")

// Gateway is the external payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error)
	Confirm(ctx context.Context, intentID string, details MethodDetails) (Confirmation, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal) (RefundConfirmation, error)
}

// Intent is a pending charge. Amount is in the currency's minor unit.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// MethodDetails describes how the customer pays. Only the block matching
// Type is read.
type MethodDetails struct {
	Type   string         `json:"type"`
	Card   *CardDetails   `json:"card,omitempty"`
	UPI    *UPIDetails    `json:"upi,omitempty"`
	Wallet *WalletDetails `json:"wallet,omitempty"`
}

type CardDetails struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type UPIDetails struct {
	VPA string `json:"vpa"`
}

type WalletDetails struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

// Confirmation is a captured charge.
type Confirmation struct {
	IntentID   string
	ChargeID   string
	Status     string
	CardBrand  string
	CardLast4  string
	ReceiptURL string
}

// RefundConfirmation is an accepted refund.
type RefundConfirmation struct {
	ID       string
	IntentID string
	Amount   int64
	Status   string
}

// MinorUnits converts an amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CardBrand guesses the network from the card number prefix.
func CardBrand(number string) string {
	if number == "" {
		return "unknown"
	}
	if number[0] == '4' {
		return "visa"
	}
	if len(number) < 2 {
		return "unknown"
	}
	switch number[:2] {
	case "51", "52", "53", "54", "55":
		return "mastercard"
	case "34", "37":
		return "amex"
	case "60":
		return "discover"
	case "35":
		return "jcb"
	}
	return "unknown"
}

// Last4 returns the last four characters of a card number.
func Last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
