// Package receipt formats customer receipts and invoices and hands them to a
// notify.Sender. Figures come from billing.Bill so a receipt always matches
// the bill the staff saw.
package receipt

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/api/internal/billing"
	"github.com/tablepos/api/internal/enum"
)

// Restaurant is the header block printed on a receipt.
type Restaurant struct {
	Name     string
	Address  string
	Phone    string
	Currency string
}

// Item is one printed line.
type Item struct {
	Name      string
	Portion   string
	Quantity  int32
	UnitPrice decimal.Decimal
}

func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Label is the item name with the portion appended when it is not a full
// plate.
func (i Item) Label() string {
	if i.Portion == "" || i.Portion == enum.PortionFull {
		return i.Name
	}
	return fmt.Sprintf("%s (%s)", i.Name, i.Portion)
}

// Receipt is everything printed for a paid (or, for invoices, unpaid)
// order.
type Receipt struct {
	OrderID       uuid.UUID
	Restaurant    Restaurant
	TableNumber   int32
	ServerName    string
	CustomerName  string
	CustomerEmail string
	Items         []Item
	Bill          billing.Bill
	Tip           decimal.Decimal
	PaymentMethod string
	TransactionID string
	Date          time.Time
}

// Total is the bill total plus tip.
func (r Receipt) Total() decimal.Decimal {
	return r.Bill.WithTip(r.Tip)
}

// Paid reports whether the receipt carries a settled payment.
func (r Receipt) Paid() bool {
	return r.TransactionID != ""
}

func (r Receipt) Subject() string {
	return fmt.Sprintf("Receipt for Order #%s - %s", shortID(r.OrderID), r.Restaurant.Name)
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func currencySymbol(code string) string {
	switch strings.ToLower(code) {
	case "", "inr":
		return "₹"
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	}
	return strings.ToUpper(code) + " "
}

func funcs(r Receipt) map[string]any {
	sym := currencySymbol(r.Restaurant.Currency)
	return map[string]any{
		"money": func(d decimal.Decimal) string { return sym + d.StringFixed(2) },
		"upper": strings.ToUpper,
		"short": shortID,
		"date":  func(t time.Time) string { return t.Format("02 Jan 2006 15:04") },
	}
}

// Render produces the HTML and plain-text bodies for r.
func Render(r Receipt) (string, string, error) {
	fm := funcs(r)

	html, err := htmltemplate.New("receipt.html").Funcs(fm).Parse(htmlLayout)
	if err != nil {
		return "", "", fmt.Errorf("parse html template: %w", err)
	}
	var hb bytes.Buffer
	if err := html.Execute(&hb, r); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}

	text, err := texttemplate.New("receipt.txt").Funcs(fm).Parse(textLayout)
	if err != nil {
		return "", "", fmt.Errorf("parse text template: %w", err)
	}
	var tb bytes.Buffer
	if err := text.Execute(&tb, r); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}

	return hb.String(), strings.TrimSpace(tb.String()) + "\n", nil
}

const htmlLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .Paid}}Receipt{{else}}Invoice{{end}} #{{short .OrderID}}</title>
<style>
body { font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.header { text-align: center; border-bottom: 2px solid #333; padding-bottom: 16px; }
table { width: 100%; border-collapse: collapse; margin: 16px 0; }
th { background: #333; color: #fff; padding: 8px; text-align: left; }
td { padding: 8px; border-bottom: 1px solid #ddd; }
.totals td { border: none; }
.total td { font-weight: bold; border-top: 2px solid #333; }
.footer { text-align: center; color: #666; font-size: 14px; margin-top: 24px; }
</style>
</head>
<body>
<div class="header">
<h1>{{.Restaurant.Name}}</h1>
<p>{{.Restaurant.Address}}</p>
<p>Phone: {{.Restaurant.Phone}}</p>
</div>
<p><strong>{{if .Paid}}Receipt{{else}}Invoice{{end}} #:</strong> {{short .OrderID}}</p>
<p><strong>Date:</strong> {{date .Date}}</p>
<p><strong>Table:</strong> {{.TableNumber}}</p>
{{- if .ServerName}}
<p><strong>Server:</strong> {{.ServerName}}</p>
{{- end}}
{{- if .CustomerName}}
<p><strong>Customer:</strong> {{.CustomerName}}</p>
{{- end}}
<table>
<thead><tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead>
<tbody>
{{- range .Items}}
<tr><td>{{.Label}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .Total}}</td></tr>
{{- end}}
</tbody>
</table>
<table class="totals">
<tr><td>Subtotal</td><td>{{money .Bill.Subtotal}}</td></tr>
<tr><td>Tax ({{.Bill.TaxRate}}%)</td><td>{{money .Bill.Tax}}</td></tr>
{{- if .Tip.IsPositive}}
<tr><td>Tip</td><td>{{money .Tip}}</td></tr>
{{- end}}
<tr class="total"><td>Total</td><td>{{money .Total}}</td></tr>
</table>
{{- if .Paid}}
<p><strong>Payment Successful</strong></p>
<p><strong>Payment Method:</strong> {{upper .PaymentMethod}}</p>
<p><strong>Transaction ID:</strong> {{.TransactionID}}</p>
{{- else}}
<p><strong>Amount due:</strong> {{money .Total}}</p>
{{- end}}
<div class="footer">
<p>Thank you for dining with us!</p>
</div>
</body>
</html>
`

const textLayout = `{{.Restaurant.Name}}
{{.Restaurant.Address}}
Phone: {{.Restaurant.Phone}}
----------------------------------
{{if .Paid}}Receipt{{else}}Invoice{{end}} #{{short .OrderID}}
Date: {{date .Date}}
Table: {{.TableNumber}}
{{- if .ServerName}}
Server: {{.ServerName}}
{{- end}}
----------------------------------
{{- range .Items}}
{{.Label}}
  {{.Quantity}} x {{money .UnitPrice}} = {{money .Total}}
{{- end}}
----------------------------------
Subtotal: {{money .Bill.Subtotal}}
Tax ({{.Bill.TaxRate}}%): {{money .Bill.Tax}}
{{- if .Tip.IsPositive}}
Tip: {{money .Tip}}
{{- end}}
TOTAL: {{money .Total}}
{{- if .Paid}}
Payment Method: {{upper .PaymentMethod}}
Transaction ID: {{.TransactionID}}
{{- end}}
----------------------------------
Thank you for dining with us!
`
