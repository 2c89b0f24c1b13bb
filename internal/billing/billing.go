// Package billing computes bills, tips and split shares. Every function is
// pure: the bill endpoint, the receipt and the invoice all derive their
// figures from here.
package billing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeTip       = errors.New("tip must not be negative")
	ErrInvalidSplitCount = errors.New("number of splits must be at least 1")
	ErrNegativeTaxRate   = errors.New("tax rate must not be negative")
)

var hundred = decimal.NewFromInt(100)

// halfCent is the rounding error a single 2-decimal share can carry.
var halfCent = decimal.RequireFromString("0.005")

// Line is one priced line of an order.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Total returns unit_price * quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Bill is derived from an order's items and the restaurant tax rate. It is
// never stored.
type Bill struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeBill applies taxRatePercent (e.g. 5 for 5%) to subtotal.
func ComputeBill(subtotal, taxRatePercent decimal.Decimal) (Bill, error) {
	if taxRatePercent.IsNegative() {
		return Bill{}, ErrNegativeTaxRate
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRatePercent).Div(hundred).Round(2)
	return Bill{
		Subtotal: subtotal,
		TaxRate:  taxRatePercent,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}, nil
}

// WithTip returns the amount due once tip is added.
func (b Bill) WithTip(tip decimal.Decimal) decimal.Decimal {
	return b.Total.Add(tip.Round(2))
}

// Tip is the outcome of ComputeTip.
type Tip struct {
	Percent    decimal.Decimal `json:"tip_percent"`
	Amount     decimal.Decimal `json:"tip_amount"`
	FinalTotal decimal.Decimal `json:"final_total"`
}

// ComputeTip derives the tip for billTotal. A custom amount wins over a
// percentage; with neither the tip is zero.
func ComputeTip(billTotal decimal.Decimal, percent, custom *decimal.Decimal) (Tip, error) {
	var t Tip
	switch {
	case custom != nil:
		if custom.IsNegative() {
			return Tip{}, ErrNegativeTip
		}
		t.Amount = custom.Round(2)
		if billTotal.IsPositive() {
			t.Percent = t.Amount.Div(billTotal).Mul(hundred).Round(2)
		}
	case percent != nil:
		if percent.IsNegative() {
			return Tip{}, ErrNegativeTip
		}
		t.Percent = *percent
		t.Amount = billTotal.Mul(*percent).Div(hundred).Round(2)
	}
	t.FinalTotal = billTotal.Add(t.Amount)
	return t, nil
}

// Share is one payer's part of a split payment.
type Share struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	PayerName  string          `json:"payer_name,omitempty"`
	PayerEmail string          `json:"payer_email,omitempty"`
}

// SplitEvenly divides total into n equal shares rounded to the cent. The
// shares may not add back up to total exactly; see Balanced.
func SplitEvenly(total decimal.Decimal, n int) ([]Share, error) {
	if n < 1 {
		return nil, ErrInvalidSplitCount
	}
	count := decimal.NewFromInt(int64(n))
	amount := total.Div(count).Round(2)
	pct := hundred.Div(count).Round(2)

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{Amount: amount, Percentage: pct}
	}
	return shares, nil
}

// SplitCustom fills in the display percentage of caller-chosen amounts. It
// does not check that the amounts cover total.
func SplitCustom(total decimal.Decimal, shares []Share) []Share {
	out := make([]Share, len(shares))
	for i, s := range shares {
		s.Amount = s.Amount.Round(2)
		if total.IsPositive() {
			s.Percentage = s.Amount.Div(total).Mul(hundred).Round(2)
		} else {
			s.Percentage = decimal.Zero
		}
		out[i] = s
	}
	return out
}

// Sum adds up share amounts.
func Sum(shares []Share) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Balanced reports whether the shares add up to total within the rounding
// error of n cent-rounded shares.
func Balanced(total decimal.Decimal, shares []Share) bool {
	if len(shares) == 0 {
		return true
	}
	tolerance := halfCent.Mul(decimal.NewFromInt(int64(len(shares))))
	return Sum(shares).Sub(total).Abs().LessThanOrEqual(tolerance)
}
