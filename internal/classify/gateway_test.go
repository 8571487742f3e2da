package classify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quarterly-dev/quarterly/internal/category"
)

func mustSchema(t *testing.T, bt category.BusinessType) *category.Schema {
	t.Helper()
	schema, err := category.SchemaFor(bt)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func TestParseOutcome(t *testing.T) {
	schema := mustSchema(t, category.SelfEmployment)

	tests := []struct {
		name     string
		raw      string
		wantKind OutcomeKind
		wantCode category.Code
	}{
		{name: "exact code", raw: "travelCosts", wantKind: OutcomeCategory, wantCode: category.TravelCosts},
		{name: "case insensitive", raw: "TRAVELCOSTS", wantKind: OutcomeCategory, wantCode: category.TravelCosts},
		{name: "punctuation insensitive", raw: "travel-costs", wantKind: OutcomeCategory, wantCode: category.TravelCosts},
		{name: "surrounding whitespace", raw: "  professionalFees \n", wantKind: OutcomeCategory, wantCode: category.ProfessionalFees},
		{name: "personal sentinel", raw: "PERSONAL", wantKind: OutcomePersonal},
		{name: "personal sentinel lowercase", raw: "personal", wantKind: OutcomePersonal},
		{name: "manual review sentinel", raw: "MANUAL_REVIEW", wantKind: OutcomeManualReview},
		{name: "unknown category", raw: "officePizzaBudget", wantKind: OutcomeUnrecognized},
		{name: "empty", raw: "", wantKind: OutcomeUnrecognized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseOutcome(tc.raw, schema)
			if got.Kind != tc.wantKind {
				t.Fatalf("expected kind %v, got %v", tc.wantKind, got.Kind)
			}
			if tc.wantKind == OutcomeCategory && got.Category != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, got.Category)
			}
			if tc.wantKind == OutcomeUnrecognized && got.Raw != tc.raw {
				t.Errorf("unrecognized outcome must keep the raw response")
			}
		})
	}
}

func TestParseOutcome_SchemaScoped(t *testing.T) {
	property := mustSchema(t, category.UKProperty)
	got := ParseOutcome("costOfGoods", property)
	if got.Kind != OutcomeUnrecognized {
		t.Fatal("a code from another business type's schema must be unrecognized, not coerced")
	}
}

// fakeClassifier scripts a sequence of responses/errors per call.
type fakeClassifier struct {
	calls     int
	responses []string
	errs      []error
}

func (f *fakeClassifier) Classify(ctx context.Context, req Request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", &Error{Code: ErrClassifierUnavailable, Message: "no scripted response", Retryable: true}
}

func testRow(desc string, amount int64) TransactionRow {
	return TransactionRow{Amount: decimal.NewFromInt(amount), Description: desc, Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	schema := mustSchema(t, category.SelfEmployment)
	fake := &fakeClassifier{
		errs:      []error{&Error{Code: ErrClassifierRateLimited, Message: "slow down", Retryable: true}, nil},
		responses: []string{"", "travelCosts"},
	}
	g := NewGateway(fake, fastRetry(3), time.Second, zerolog.Nop())

	outcome, err := g.Classify(context.Background(), testRow("Train to Leeds", 40), schema)
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if outcome.Kind != OutcomeCategory || outcome.Category != category.TravelCosts {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fake.calls)
	}
}

func TestGateway_NonRetryableStopsAttempts(t *testing.T) {
	schema := mustSchema(t, category.SelfEmployment)
	fake := &fakeClassifier{
		errs: []error{&Error{Code: ErrClassifierAuth, Message: "bad key"}},
	}
	g := NewGateway(fake, fastRetry(3), time.Second, zerolog.Nop())

	_, err := g.Classify(context.Background(), testRow("Train to Leeds", 40), schema)
	if err == nil {
		t.Fatal("expected error")
	}
	cErr, ok := err.(*Error)
	if !ok || cErr.Code != ErrClassifierAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fake.calls)
	}
}

func TestGateway_ExhaustedAttemptsNeverDefaultACategory(t *testing.T) {
	schema := mustSchema(t, category.SelfEmployment)
	transient := &Error{Code: ErrClassifierUnavailable, Message: "down", Retryable: true}
	fake := &fakeClassifier{errs: []error{transient, transient, transient}}
	g := NewGateway(fake, fastRetry(3), time.Second, zerolog.Nop())

	outcome, err := g.Classify(context.Background(), testRow("Train to Leeds", 40), schema)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if outcome.Kind == OutcomeCategory {
		t.Fatal("exhausted attempts must not produce a category")
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", fake.calls)
	}
}

func TestGateway_UnrecognizedResponseBecomesManualReviewOutcome(t *testing.T) {
	schema := mustSchema(t, category.SelfEmployment)
	fake := &fakeClassifier{responses: []string{"somethingWeird"}}
	g := NewGateway(fake, fastRetry(1), time.Second, zerolog.Nop())

	outcome, err := g.Classify(context.Background(), testRow("odd row", 10), schema)
	if err != nil {
		t.Fatalf("an unrecognized response is not a transport error: %v", err)
	}
	if outcome.Kind != OutcomeUnrecognized {
		t.Fatalf("expected unrecognized outcome, got %+v", outcome)
	}
	if outcome.Raw != "somethingWeird" {
		t.Errorf("raw response must be preserved, got %q", outcome.Raw)
	}
}
