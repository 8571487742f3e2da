// Package classify implements the transaction classification pipeline: row
// normalization, personal-spend filtering, cached remote classification with
// retry, and order-preserving batch orchestration.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Direction is the income/expense orientation of a row, when the source
// spreadsheet distinguishes columns.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIncome
	DirectionExpense
)

// TransactionRow is one normalized input record. Amount is a non-negative
// magnitude; orientation travels separately in Direction. Immutable once
// produced.
type TransactionRow struct {
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	// DateDefaulted marks a Date that fell back to the processing date
	// because the source carried none.
	DateDefaulted bool
	Direction     Direction
}

// Field-name priority lists. First non-empty candidate wins; order matters.
var (
	amountFields      = []string{"amount", "Amount", "value", "Value", "total", "Total", "gross", "Gross"}
	incomeFields      = []string{"income", "Income", "credit", "Credit", "money in", "Money In", "paid in", "Paid In"}
	expenseFields     = []string{"expense", "Expense", "debit", "Debit", "money out", "Money Out", "paid out", "Paid Out"}
	descriptionFields = []string{"description", "Description", "details", "Details", "narrative", "Narrative", "merchant", "Merchant", "payee", "Payee"}
	dateFields        = []string{"date", "Date", "transaction date", "Transaction Date", "posted", "Posted"}
)

var (
	currencyChars = regexp.MustCompile(`[£$€,\s]`)
	longNumbers   = regexp.MustCompile(`\d{6,}`)
	specialChars  = regexp.MustCompile(`[*#]+`)
	cardPrefixes  = regexp.MustCompile(`(?i)^(pos |card payment to |direct debit |dd |visa |mastercard |paypal \*)`)
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// Normalizer turns loosely-shaped field maps into TransactionRows.
type Normalizer struct {
	// Now supplies the processing date used when a row carries no date.
	Now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

// Normalize extracts (amount, description, date) from a record with
// unordered, inconsistently-named fields. It fails with ErrMissingAmount or
// ErrMissingDescription when no candidate field parses.
func (n *Normalizer) Normalize(record map[string]string) (TransactionRow, error) {
	row := TransactionRow{Direction: DirectionUnknown}

	amount, direction, ok := extractAmount(record)
	if !ok {
		return TransactionRow{}, &Error{
			Code:    ErrMissingAmount,
			Message: "no parseable amount field in record",
		}
	}
	row.Amount = amount
	row.Direction = direction

	desc := firstNonEmpty(record, descriptionFields)
	if desc == "" {
		return TransactionRow{}, &Error{
			Code:    ErrMissingDescription,
			Message: "no description field in record",
		}
	}
	row.Description = strings.TrimSpace(desc)

	if raw := firstNonEmpty(record, dateFields); raw != "" {
		if d, ok := parseDate(raw); ok {
			row.Date = d
		}
	}
	if row.Date.IsZero() {
		row.Date = n.Now()
		row.DateDefaulted = true
	}

	return row, nil
}

// extractAmount tries direction-specific columns first, then generic amount
// columns. Returns the absolute magnitude.
func extractAmount(record map[string]string) (decimal.Decimal, Direction, bool) {
	if raw := firstNonEmpty(record, incomeFields); raw != "" {
		if d, ok := parseAmount(raw); ok && !d.IsZero() {
			return d, DirectionIncome, true
		}
	}
	if raw := firstNonEmpty(record, expenseFields); raw != "" {
		if d, ok := parseAmount(raw); ok && !d.IsZero() {
			return d, DirectionExpense, true
		}
	}
	for _, field := range amountFields {
		raw, ok := record[field]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if d, ok := parseAmount(raw); ok {
			return d, DirectionUnknown, true
		}
	}
	return decimal.Zero, DirectionUnknown, false
}

// parseAmount strips currency symbols, separators, and parenthesized-negative
// notation, returning the absolute magnitude.
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	s = currencyChars.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Abs(), true
}

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(record map[string]string, fields []string) string {
	for _, f := range fields {
		if v, ok := record[f]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CleanDescription strips card-terminal noise from a raw description and
// title-cases it for display.
func CleanDescription(raw string) string {
	cleaned := cardPrefixes.ReplaceAllString(raw, "")
	cleaned = longNumbers.ReplaceAllString(cleaned, "")
	cleaned = specialChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	caser := cases.Title(language.BritishEnglish)
	words := strings.Fields(cleaned)
	for i, word := range words {
		if len(word) > 2 {
			words[i] = caser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}

	result := strings.Join(words, " ")
	if len(result) > 60 {
		result = result[:60]
	}
	return result
}
