package classify

import (
	"context"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/quarterly-dev/quarterly/internal/category"
)

type funcClassifier func(ctx context.Context, req Request) (string, error)

func (f funcClassifier) Classify(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func testConfig() Config {
	return Config{
		BatchSize:     4,
		BatchInterval: time.Millisecond,
		CallTimeout:   time.Second,
		Retry:         fastRetry(1),
	}
}

func TestPipeline_PreservesRowOrderAcrossCompletionOrder(t *testing.T) {
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		// Shuffle completion order within the batch.
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		if strings.Contains(req.Row.Description, "invoice") {
			return "turnover", nil
		}
		return "adminCosts", nil
	})
	p := NewPipeline(classifier, testConfig(), zerolog.Nop())

	records := make([]map[string]string, 12)
	for i := range records {
		desc := "stationery order"
		if i%3 == 0 {
			desc = "invoice payment"
		}
		records[i] = map[string]string{"amount": "10.00", "description": desc}
	}

	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(result.Results))
	}
	for i, r := range result.Results {
		if r.Index != i {
			t.Fatalf("result %d carries index %d, order not preserved", i, r.Index)
		}
		want := category.AdminCosts
		if i%3 == 0 {
			want = category.Turnover
		}
		if r.Category != want {
			t.Errorf("row %d: expected %s, got %s", i, want, r.Category)
		}
	}
}

func TestPipeline_PersonalRowsNeverReachClassifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mock := NewMockClassifier(ctrl)
	// Exactly two rows survive the personal filter.
	mock.EXPECT().Classify(gomock.Any(), gomock.Any()).Return("travelCosts", nil).Times(2)

	p := NewPipeline(mock, testConfig(), zerolog.Nop())
	records := []map[string]string{
		{"amount": "120.00", "description": "Hotel stay Manchester"},
		{"amount": "45.00", "description": "Tesco groceries"},
		{"amount": "12.00", "description": "Netflix subscription"},
		{"amount": "60.00", "description": "Train to client site"},
	}

	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Counts.Personal != 2 {
		t.Errorf("expected 2 personal rows, got %d", result.Counts.Personal)
	}
	if result.Counts.Successful != 2 {
		t.Errorf("expected 2 classified rows, got %d", result.Counts.Successful)
	}
	for _, r := range result.Results {
		if !r.IsPersonal {
			continue
		}
		if r.Source != "personal_filter" {
			t.Errorf("personal row %d attributed to %q", r.Index, r.Source)
		}
		if !strings.Contains(r.Rationale, "matched personal-spend terms: ") {
			t.Errorf("personal row %d missing matched terms in rationale: %q", r.Index, r.Rationale)
		}
	}
}

func TestPipeline_CacheAvoidsRepeatCalls(t *testing.T) {
	var calls int32
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "adminCosts", nil
	})

	cfg := testConfig()
	cfg.BatchSize = 1 // serialize so the second row sees the first row's insert
	p := NewPipeline(classifier, cfg, zerolog.Nop())

	records := []map[string]string{
		{"amount": "9.99", "description": "Dropbox subscription"},
		{"amount": "9.99", "description": "dropbox   SUBSCRIPTION"},
	}
	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 remote call, got %d", got)
	}
	if result.Results[1].Source != "cache" {
		t.Errorf("second row should come from cache, got %q", result.Results[1].Source)
	}
	if result.Counts.Successful != 2 {
		t.Errorf("expected both rows classified, got %d", result.Counts.Successful)
	}
}

func TestPipeline_RowFailureDoesNotAbortBatch(t *testing.T) {
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		if strings.Contains(req.Row.Description, "cursed") {
			return "", &Error{Code: ErrClassifierUnavailable, Message: "down", Retryable: true}
		}
		return "adminCosts", nil
	})
	p := NewPipeline(classifier, testConfig(), zerolog.Nop())

	records := []map[string]string{
		{"amount": "10.00", "description": "printer paper"},
		{"amount": "10.00", "description": "cursed row"},
		{"amount": "10.00", "description": "toner cartridge"},
	}
	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("per-row failure must not fail the batch: %v", err)
	}
	if result.Counts.Successful != 2 {
		t.Errorf("expected 2 successes, got %d", result.Counts.Successful)
	}
	if result.Counts.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", result.Counts.Errors)
	}
	if result.Errors[0].Index != 1 {
		t.Errorf("error should reference row 1, got %d", result.Errors[0].Index)
	}
	if len(result.Results) != 2 {
		t.Errorf("failed rows must not appear in results, got %d entries", len(result.Results))
	}
}

func TestPipeline_NormalizationFailureRecordedUpFront(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := NewMockClassifier(ctrl)
	mock.EXPECT().Classify(gomock.Any(), gomock.Any()).Return("turnover", nil).Times(1)

	p := NewPipeline(mock, testConfig(), zerolog.Nop())
	records := []map[string]string{
		{"description": "no amount here"},
		{"amount": "100.00", "description": "consulting invoice"},
	}
	var progressCalls int
	progress := func(completed, total int, pct float64) {
		progressCalls++
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
	}
	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, progress)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Counts.Errors != 1 || result.Errors[0].Code != ErrMissingAmount {
		t.Fatalf("expected a MISSING_AMOUNT row error, got %+v", result.Errors)
	}
	if result.Errors[0].Description != "no amount here" {
		t.Errorf("row error should carry the description, got %q", result.Errors[0].Description)
	}
	if result.Counts.Successful != 1 {
		t.Errorf("expected 1 success, got %d", result.Counts.Successful)
	}
	if progressCalls != 2 {
		t.Errorf("every row counts toward progress, expected 2 callbacks, got %d", progressCalls)
	}
}

func TestPipeline_CancellationAtBatchBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		cancel() // takes effect at the next batch boundary
		return "adminCosts", nil
	})

	cfg := testConfig()
	cfg.BatchSize = 1
	p := NewPipeline(classifier, cfg, zerolog.Nop())

	records := []map[string]string{
		{"amount": "10.00", "description": "row one"},
		{"amount": "10.00", "description": "row two"},
		{"amount": "10.00", "description": "row three"},
	}
	result, err := p.ClassifyRecords(ctx, records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("cancellation must yield a partial result, not an error: %v", err)
	}
	if result.Counts.Successful != 1 {
		t.Errorf("expected the first batch's row to be retained, got %d successes", result.Counts.Successful)
	}
	if result.Counts.NotProcessed != 2 {
		t.Errorf("expected 2 rows marked not processed, got %d", result.Counts.NotProcessed)
	}
	for _, r := range result.Results {
		if r.NotProcessed && (r.Category != "" || r.IsPersonal || r.NeedsReview) {
			t.Errorf("not-processed row %d carries another disposition", r.Index)
		}
	}
}

func TestPipeline_ProgressReporting(t *testing.T) {
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		return "adminCosts", nil
	})
	p := NewPipeline(classifier, testConfig(), zerolog.Nop())

	var calls int
	var last float64
	progress := func(completed, total int, pct float64) {
		calls++
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		last = pct
	}

	records := []map[string]string{
		{"amount": "10.00", "description": "one"},
		{"amount": "10.00", "description": "two"},
		{"amount": "10.00", "description": "three"},
	}
	if _, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, progress); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 progress callbacks, got %d", calls)
	}
	if last != 100 {
		t.Errorf("expected final percentage 100, got %f", last)
	}
}

func TestPipeline_SystemicFailureFlag(t *testing.T) {
	classifier := funcClassifier(func(ctx context.Context, req Request) (string, error) {
		return "", &Error{Code: ErrClassifierQuotaExhausted, Message: "quota"}
	})
	p := NewPipeline(classifier, testConfig(), zerolog.Nop())

	records := []map[string]string{
		{"amount": "10.00", "description": "one"},
		{"amount": "10.00", "description": "two"},
	}
	result, err := p.ClassifyRecords(context.Background(), records, category.SelfEmployment, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.SystemicFailure {
		t.Error("expected systemic failure flag when every row hit a non-retryable error")
	}
}
