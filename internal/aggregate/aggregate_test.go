package aggregate

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/period"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func classified(desc, amount string, code category.Code) classify.Result {
	d, _ := decimal.NewFromString(amount)
	return classify.Result{
		Row:      classify.TransactionRow{Description: desc, Amount: d},
		Category: code,
	}
}

func selfEmployment(t *testing.T) *category.Schema {
	t.Helper()
	s, err := category.SchemaFor(category.SelfEmployment)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAccumulate_SumsByCategory(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	results := []classify.Result{
		classified("Train to Leeds", "42.50", category.TravelCosts),
		classified("Hotel stay", "120.00", category.TravelCosts),
		classified("Accountant fee", "300.00", category.ProfessionalFees),
	}
	totals, excl := agg.Accumulate(results, schema)

	if !totals.Get(category.TravelCosts).Equal(dec(t, "162.50")) {
		t.Errorf("travelCosts = %s, want 162.50", totals.Get(category.TravelCosts))
	}
	if !totals.Get(category.ProfessionalFees).Equal(dec(t, "300.00")) {
		t.Errorf("professionalFees = %s, want 300.00", totals.Get(category.ProfessionalFees))
	}
	if len(excl.InvalidCategories) != 0 || len(excl.CapitalItems) != 0 {
		t.Errorf("unexpected exclusions: %+v", excl)
	}
}

func TestAccumulate_SkipsNonCategoryDispositions(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	results := []classify.Result{
		{Row: classify.TransactionRow{Description: "Tesco"}, IsPersonal: true},
		{Row: classify.TransactionRow{Description: "odd item"}, NeedsReview: true},
		{Row: classify.TransactionRow{Description: "late row"}, NotProcessed: true},
		classified("Printer ink", "15.00", category.AdminCosts),
	}
	totals, _ := agg.Accumulate(results, schema)

	var sum decimal.Decimal
	for _, v := range totals {
		sum = sum.Add(v)
	}
	if !sum.Equal(dec(t, "15.00")) {
		t.Errorf("only the classified row should count, total = %s", sum)
	}
}

func TestAccumulate_RoutesCapitalToExclusions(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	results := []classify.Result{
		classified("New laptop", "1500.00", category.PlantAndMachinery),
		classified("Van purchase", "8000.00", category.MotorVehicles),
		classified("Train fare", "20.00", category.TravelCosts),
	}
	totals, excl := agg.Accumulate(results, schema)

	if len(excl.CapitalItems) != 2 {
		t.Fatalf("expected 2 capital exclusions, got %d", len(excl.CapitalItems))
	}
	if _, ok := totals[category.PlantAndMachinery]; ok {
		t.Error("capital code must never appear in period totals")
	}
	if !totals.Get(category.TravelCosts).Equal(dec(t, "20.00")) {
		t.Errorf("non-capital row should still count, got %s", totals.Get(category.TravelCosts))
	}
}

func TestAccumulate_RoutesUnknownCodeToExclusions(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	results := []classify.Result{
		// rentIncome belongs to the property schema, not self-employment.
		classified("Flat rent received", "700.00", category.RentIncome),
	}
	totals, excl := agg.Accumulate(results, schema)

	if len(excl.InvalidCategories) != 1 {
		t.Fatalf("expected 1 invalid-category exclusion, got %d", len(excl.InvalidCategories))
	}
	if excl.InvalidCategories[0].Category != category.RentIncome {
		t.Errorf("exclusion should name the offending code, got %s", excl.InvalidCategories[0].Category)
	}
	var sum decimal.Decimal
	for _, v := range totals {
		sum = sum.Add(v)
	}
	if !sum.IsZero() {
		t.Errorf("invalid row must not contribute to totals, sum = %s", sum)
	}
}

func TestBuildReport_CompleteKeysAndRounding(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	totals := category.Totals{
		category.Turnover:    dec(t, "1000.005"),
		category.TravelCosts: dec(t, "33.333"),
	}
	report := agg.BuildReport(totals, schema, Exclusions{}, classify.Counts{}, period.Q2)

	for _, code := range schema.NonCapital() {
		if _, ok := report.Totals[code]; !ok {
			t.Errorf("report totals missing key %s", code)
		}
	}
	for _, code := range schema.Capital() {
		if _, ok := report.Totals[code]; ok {
			t.Errorf("capital code %s must not appear in report totals", code)
		}
	}
	if got := report.Totals[category.TravelCosts]; !got.Equal(dec(t, "33.33")) {
		t.Errorf("totals should round to 2dp, got %s", got)
	}
}

func TestBuildReport_SummaryConsistency(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	totals := category.Totals{
		category.Turnover:         dec(t, "1000.00"),
		category.OtherIncome:      dec(t, "50.00"),
		category.TravelCosts:      dec(t, "120.00"),
		category.ProfessionalFees: dec(t, "300.00"),
	}
	report := agg.BuildReport(totals, schema, Exclusions{}, classify.Counts{}, period.Q1)

	if !report.Summary.TotalIncome.Equal(dec(t, "1050.00")) {
		t.Errorf("total income = %s, want 1050.00", report.Summary.TotalIncome)
	}
	if !report.Summary.TotalExpenses.Equal(dec(t, "420.00")) {
		t.Errorf("total expenses = %s, want 420.00", report.Summary.TotalExpenses)
	}
	want := report.Summary.TotalIncome.Sub(report.Summary.TotalExpenses)
	if !report.Summary.NetProfitLoss.Equal(want) {
		t.Errorf("net = %s, want income minus expenses = %s", report.Summary.NetProfitLoss, want)
	}

	// Summary figures re-derive exactly from the published totals.
	income := report.Totals.Sum(schema.Income())
	expenses := report.Totals.Sum(schema.Expense())
	if !income.Equal(report.Summary.TotalIncome) || !expenses.Equal(report.Summary.TotalExpenses) {
		t.Error("summary does not match the sum of published totals")
	}
}

func TestBuildReport_ExpenseOnlyNetIsNegative(t *testing.T) {
	schema := selfEmployment(t)
	agg := NewAggregator(zerolog.Nop())

	totals := category.Totals{
		category.TravelCosts:      dec(t, "120.00"),
		category.ProfessionalFees: dec(t, "300.00"),
	}
	report := agg.BuildReport(totals, schema, Exclusions{}, classify.Counts{}, period.Q1)

	if !report.Summary.NetProfitLoss.Equal(dec(t, "-420.00")) {
		t.Errorf("net = %s, want -420.00", report.Summary.NetProfitLoss)
	}
}
