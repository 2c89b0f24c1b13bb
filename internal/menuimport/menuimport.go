// Package menuimport turns the text of a printed menu into menu item
// candidates. Getting text out of a PDF is the job of a TextExtractor; no
// extractor ships with this service.
package menuimport

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Document is the extracted text of an uploaded menu file.
type Document struct {
	Text  string
	Pages int
}

// TextExtractor pulls plain text out of a binary menu (e.g. a PDF).
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (Document, error)
}

// Candidate is one menu item found in the text.
type Candidate struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
}

// Result is the outcome of Parse.
type Result struct {
	Items    []Candidate `json:"items"`
	Warnings []string    `json:"warnings"`
}

var (
	minPrice = decimal.Zero
	maxPrice = decimal.NewFromInt(10000)
)

// Section headings that are never items.
var headerRe = regexp.MustCompile(`(?i)^(menu|appetizers|mains|desserts|beverages|starters)`)

// Currency prefixes accepted in front of a price, attached or standalone.
var currencyPrefixes = []string{"₹", "rs.", "rs", "inr"}

// Parse scans text line by line. A line holding a price becomes an item
// named by the text before the price; a following line without a price
// and longer than 10 characters becomes its description.
func Parse(text string) Result {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	res := Result{Items: []Candidate{}, Warnings: []string{}}
	for i, line := range lines {
		if len(line) < 3 || headerRe.MatchString(line) {
			continue
		}

		name, price, ok := parseItemLine(line)
		if !ok {
			continue
		}
		if name == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipped: no item name in %q", line))
			continue
		}
		if !price.GreaterThan(minPrice) || !price.LessThan(maxPrice) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipped: price out of range in %q", line))
			continue
		}

		var description string
		if i+1 < len(lines) {
			next := lines[i+1]
			if _, _, hasPrice := parseItemLine(next); !hasPrice && len(next) > 10 {
				description = next
			}
		}

		res.Items = append(res.Items, Candidate{
			Name:        name,
			Description: description,
			Category:    DetectCategory(name, description),
			Price:       price.Round(2),
		})
	}
	return res
}

// parseItemLine finds the first price token and returns the text before it
// as the item name.
func parseItemLine(line string) (string, decimal.Decimal, bool) {
	tokens := strings.Fields(line)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		consumed := 1

		if isCurrencyToken(tok) && i+1 < len(tokens) {
			tok = tokens[i+1]
			consumed = 2
		}

		price, ok := parsePrice(tok)
		if !ok {
			continue
		}

		name := cleanName(strings.Join(tokens[:i], " "))
		rest := strings.Join(tokens[i+consumed:], " ")
		if name == "" && rest != "" {
			name = cleanName(rest)
		}
		return name, price, true
	}
	return "", decimal.Zero, false
}

func isCurrencyToken(tok string) bool {
	t := strings.ToLower(tok)
	for _, p := range currencyPrefixes {
		if t == p {
			return true
		}
	}
	return false
}

// parsePrice accepts "250", "250.00", "₹250", "Rs.250" and "INR250".
// Prices carry at most two decimals.
func parsePrice(tok string) (decimal.Decimal, bool) {
	t := strings.ToLower(tok)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(t, p) {
			t = t[len(p):]
			break
		}
	}
	t = strings.TrimRight(t, "/-,")
	if t == "" {
		return decimal.Zero, false
	}

	dot := strings.IndexByte(t, '.')
	for i, r := range t {
		if r == '.' && i == dot {
			continue
		}
		if r < '0' || r > '9' {
			return decimal.Zero, false
		}
	}
	if dot == 0 || (dot > 0 && len(t)-dot-1 != 2) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var (
	leaderRe    = regexp.MustCompile(`\s*\.{2,}.*$`)
	trailDashRe = regexp.MustCompile(`[\s\-–]+$`)
)

// cleanName drops dot leaders and trailing dashes.
func cleanName(s string) string {
	s = leaderRe.ReplaceAllString(s, "")
	s = trailDashRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type categoryRule struct {
	name     string
	keywords []string
}

// Checked in order; the first match wins.
var categoryRules = []categoryRule{
	{"Appetizers", []string{"appetizer", "starter", "soup", "salad"}},
	{"Main Course", []string{"curry", "biryani", "rice", "dal", "paneer", "chicken", "mutton", "fish", "main"}},
	{"Desserts", []string{"dessert", "sweet", "ice cream", "kulfi", "gulab"}},
	{"Beverages", []string{"drink", "beverage", "tea", "coffee", "juice", "soda", "lassi"}},
	{"Breads", []string{"bread", "naan", "roti", "paratha"}},
}

// DetectCategory guesses a menu category from keywords in the name and
// description, falling back to "Other".
func DetectCategory(name, description string) string {
	text := strings.ToLower(name + " " + description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.name
			}
		}
	}
	return "Other"
}

// NormalizeName lowercases a menu item name and collapses punctuation and
// whitespace so "Paneer  Tikka." and "paneer tikka" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
		default:
			space = true
		}
	}
	return b.String()
}
