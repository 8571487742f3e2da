// Package aggregate sums classified transactions into the official category
// schema and produces the quarterly summary handed to the submission step.
package aggregate

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/period"
)

// Summary holds the headline figures. To the cent:
// NetProfitLoss = TotalIncome - TotalExpenses.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetProfitLoss decimal.Decimal
}

// ExcludedItem is a row routed out of the quarterly totals.
type ExcludedItem struct {
	Category    category.Code
	Description string
	Amount      decimal.Decimal
}

// Exclusions lists rows excluded from the period totals and why.
type Exclusions struct {
	// InvalidCategories holds rows whose code is outside the active schema, a
	// defensive catch for a malfunctioning classifier.
	InvalidCategories []ExcludedItem
	// CapitalItems belong to the annual reporting cycle and must never
	// inflate a quarterly total.
	CapitalItems []ExcludedItem
}

// Report is the final pipeline output for one period.
type Report struct {
	BusinessType category.BusinessType
	Period       period.Period
	GeneratedAt  time.Time
	// Totals is complete over the schema's non-capital vocabulary and
	// rounded to 2 decimal places.
	Totals     category.Totals
	Summary    Summary
	Exclusions Exclusions
	Counts     classify.Counts
	// Warnings carries data-quality notes (negative cumulative differences,
	// unmapped box rows) that were logged but not fatal.
	Warnings []string
}

// Aggregator accumulates classification results into category totals.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log}
}

// Accumulate sums successfully-classified, non-personal results into a
// complete totals map. Capital-coded rows and rows with codes outside the
// schema are routed into exclusions instead of the totals.
func (a *Aggregator) Accumulate(results []classify.Result, schema *category.Schema) (category.Totals, Exclusions) {
	totals := category.NewTotals(schema)
	var excl Exclusions

	for _, r := range results {
		if r.Category == "" || r.IsPersonal || r.NeedsReview || r.NotProcessed {
			continue
		}

		kind, ok := schema.KindOf(r.Category)
		if !ok {
			a.log.Warn().
				Str("category", string(r.Category)).
				Str("description", r.Row.Description).
				Msg("classified category outside active schema, excluding")
			excl.InvalidCategories = append(excl.InvalidCategories, ExcludedItem{
				Category:    r.Category,
				Description: r.Row.Description,
				Amount:      r.Row.Amount,
			})
			continue
		}
		if kind == category.KindCapital {
			excl.CapitalItems = append(excl.CapitalItems, ExcludedItem{
				Category:    r.Category,
				Description: r.Row.Description,
				Amount:      r.Row.Amount,
			})
			continue
		}

		totals.Add(r.Category, r.Row.Amount)
	}

	return totals, excl
}

// BuildReport finalizes totals into a report: the map is made complete over
// the non-capital vocabulary, every entry is rounded to 2 decimal places, and
// the income/expense/net summary is computed. Rounding happens here and
// nowhere earlier.
func (a *Aggregator) BuildReport(totals category.Totals, schema *category.Schema, excl Exclusions, counts classify.Counts, p period.Period) *Report {
	complete := category.NewTotals(schema)
	for c, v := range totals {
		if schema.Contains(c) && !schema.IsCapital(c) {
			complete[c] = v
		}
	}
	complete = complete.Round()

	income := complete.Sum(schema.Income())
	expenses := complete.Sum(schema.Expense())

	return &Report{
		BusinessType: schema.BusinessType,
		Period:       p,
		GeneratedAt:  time.Now().UTC(),
		Totals:       complete,
		Summary: Summary{
			TotalIncome:   income,
			TotalExpenses: expenses,
			NetProfitLoss: income.Sub(expenses),
		},
		Exclusions: excl,
		Counts:     counts,
	}
}
