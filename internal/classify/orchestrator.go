package classify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// Result is the resolved disposition for one input row. Exactly one of
// Category-set, IsPersonal, NeedsReview, or NotProcessed holds for a row that
// produced no error.
type Result struct {
	Index        int
	Row          TransactionRow
	Category     category.Code
	IsPersonal   bool
	NeedsReview  bool
	NotProcessed bool
	Confidence   float64
	Rationale    string
	Source       string // "personal_filter", "cache", "classifier"
}

// RowError records one row's failure without aborting the batch.
type RowError struct {
	Index       int
	Description string
	Code        ErrorCode
	Err         error
}

// Counts summarizes row dispositions for the caller's error-rate judgement.
type Counts struct {
	Successful   int
	Personal     int
	Errors       int
	ManualReview int
	NotProcessed int
}

// BatchResult is the ordered outcome of classifying one batch of rows.
// Results preserves source-row order regardless of completion order.
type BatchResult struct {
	Results []Result
	Errors  []RowError
	Counts  Counts
	// SystemicFailure is set when non-retryable classifier errors affected at
	// least half of the rows that reached the remote call.
	SystemicFailure bool
}

// ProgressFunc observes per-row completion. It is an observability hook only;
// the pipeline completes correctly with no observer attached.
type ProgressFunc func(completed, total int, percentage float64)

// Config tunes one pipeline instance.
type Config struct {
	BatchSize     int           // rows classified concurrently per batch
	BatchInterval time.Duration // minimum spacing between batch starts
	CallTimeout   time.Duration // per-attempt classifier timeout
	Retry         RetryConfig
}

// DefaultConfig matches the remote classifier's throughput limits.
var DefaultConfig = Config{
	BatchSize:     10,
	BatchInterval: 2 * time.Second,
	CallTimeout:   20 * time.Second,
	Retry:         DefaultRetryConfig,
}

// Pipeline drives rows through normalization, the personal filter, and the
// classifier gateway with bounded concurrency. It owns the cache and rate
// limiter for its runs, so concurrent or repeated submissions never share
// hidden state.
type Pipeline struct {
	normalizer *Normalizer
	gateway    *Gateway
	cache      *Cache
	limiter    *rate.Limiter
	batchSize  int
	log        zerolog.Logger
}

// NewPipeline constructs a pipeline around a classifier.
func NewPipeline(c Classifier, cfg Config, log zerolog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = DefaultConfig.BatchInterval
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}
	return &Pipeline{
		normalizer: NewNormalizer(),
		gateway:    NewGateway(c, cfg.Retry, cfg.CallTimeout, log),
		cache:      NewCache(),
		limiter:    rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		batchSize:  cfg.BatchSize,
		log:        log,
	}
}

// Cache exposes the pipeline's cache, mainly for tests and hosts that want to
// reuse it across runs.
func (p *Pipeline) Cache() *Cache { return p.cache }

// ClassifyRecords normalizes and classifies raw field-map records. See
// ClassifyRows for the batching and cancellation semantics.
func (p *Pipeline) ClassifyRecords(ctx context.Context, records []map[string]string, bt category.BusinessType, progress ProgressFunc) (*BatchResult, error) {
	schema, err := category.SchemaFor(bt)
	if err != nil {
		return nil, err
	}

	rows := make([]TransactionRow, 0, len(records))
	indexes := make([]int, 0, len(records))
	result := &BatchResult{}
	for i, record := range records {
		row, err := p.normalizer.Normalize(record)
		if err != nil {
			cErr := err.(*Error)
			result.Errors = append(result.Errors, RowError{
				Index:       i,
				Description: firstNonEmpty(record, descriptionFields),
				Code:        cErr.Code,
				Err:         err,
			})
			continue
		}
		rows = append(rows, row)
		indexes = append(indexes, i)
	}

	classified, err := p.classifyRows(ctx, rows, indexes, len(records), schema, progress, result)
	if err != nil {
		return nil, err
	}
	return classified, nil
}

// ClassifyRows classifies already-normalized rows, preserving input order in
// the result. Cancellation is honoured at batch boundaries: rows already
// classified are retained, the rest are marked NotProcessed, and a partial
// result is returned rather than an error.
func (p *Pipeline) ClassifyRows(ctx context.Context, rows []TransactionRow, schema *category.Schema, progress ProgressFunc) (*BatchResult, error) {
	indexes := make([]int, len(rows))
	for i := range rows {
		indexes[i] = i
	}
	return p.classifyRows(ctx, rows, indexes, len(rows), schema, progress, &BatchResult{})
}

func (p *Pipeline) classifyRows(ctx context.Context, rows []TransactionRow, indexes []int, total int, schema *category.Schema, progress ProgressFunc, result *BatchResult) (*BatchResult, error) {
	results := make([]Result, 0, len(rows))

	var mu sync.Mutex
	completed := 0
	report := func() {
		completed++
		if progress != nil {
			progress(completed, total, float64(completed)/float64(total)*100)
		}
	}

	// Rows already dropped at normalization still count toward progress.
	for range result.Errors {
		report()
	}

	// Personal filter runs before any remote work. Matched rows are recorded
	// and never reach the gateway.
	var remote []Result
	for i, row := range rows {
		if match := CheckPersonal(row.Description, row.Amount); match.IsPersonal {
			results = append(results, Result{
				Index:      indexes[i],
				Row:        row,
				IsPersonal: true,
				Confidence: match.Confidence,
				Rationale:  "matched personal-spend terms: " + strings.Join(match.MatchedTerms, ", "),
				Source:     "personal_filter",
			})
			report()
			continue
		}
		remote = append(remote, Result{Index: indexes[i], Row: row})
	}

	var nonRetryable int
	attempted := 0
	cancelled := false

	for start := 0; start < len(remote); start += p.batchSize {
		// Cancellation is checked only between batches so no batch is left in
		// a partially-reconciled state.
		if ctx.Err() != nil {
			cancelled = true
			for i := start; i < len(remote); i++ {
				remote[i].NotProcessed = true
			}
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			cancelled = true
			for i := start; i < len(remote); i++ {
				remote[i].NotProcessed = true
			}
			break
		}

		end := start + p.batchSize
		if end > len(remote) {
			end = len(remote)
		}
		batch := remote[start:end]
		attempted += len(batch)

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(r *Result) {
				defer wg.Done()
				p.classifyOne(ctx, r, schema, &mu, result, &nonRetryable)
				mu.Lock()
				report()
				mu.Unlock()
			}(&batch[i])
		}
		wg.Wait()
	}

	// Rows whose classification failed live in the error list only; a result
	// with no disposition at all must never be produced.
	for _, r := range remote {
		if r.Category != "" || r.IsPersonal || r.NeedsReview || r.NotProcessed {
			results = append(results, r)
		}
	}
	orderResults(results)
	result.Results = results

	for _, r := range results {
		switch {
		case r.IsPersonal:
			result.Counts.Personal++
		case r.NeedsReview:
			result.Counts.ManualReview++
		case r.NotProcessed:
			result.Counts.NotProcessed++
		case r.Category != "":
			result.Counts.Successful++
		}
	}
	result.Counts.Errors = len(result.Errors)

	if attempted > 0 && nonRetryable*2 >= attempted {
		result.SystemicFailure = true
		p.log.Warn().
			Int("nonRetryable", nonRetryable).
			Int("attempted", attempted).
			Msg("classifier failures look systemic")
	}
	if cancelled {
		p.log.Info().
			Int("notProcessed", result.Counts.NotProcessed).
			Msg("classification cancelled, returning partial result")
	}

	return result, nil
}

// classifyOne resolves a single row through the cache and gateway, mutating r
// in place. Rows whose classification fails are dropped from the totals path
// by leaving every disposition flag unset and recording a RowError.
func (p *Pipeline) classifyOne(ctx context.Context, r *Result, schema *category.Schema, mu *sync.Mutex, batch *BatchResult, nonRetryable *int) {
	key := Key(schema.BusinessType, r.Row.Amount, r.Row.Description)
	if outcome, ok := p.cache.Get(key); ok {
		applyOutcome(r, outcome, "cache")
		return
	}

	outcome, err := p.gateway.Classify(ctx, r.Row, schema)
	if err != nil {
		mu.Lock()
		defer mu.Unlock()
		code := ErrClassificationFailure
		if cErr, ok := err.(*Error); ok {
			if !cErr.Retryable {
				*nonRetryable++
			}
			code = cErr.Code
		}
		batch.Errors = append(batch.Errors, RowError{
			Index:       r.Index,
			Description: r.Row.Description,
			Code:        code,
			Err:         err,
		})
		return
	}

	if outcome.Kind == OutcomeCategory || outcome.Kind == OutcomePersonal {
		p.cache.Put(key, outcome)
	}
	applyOutcome(r, outcome, "classifier")
}

func applyOutcome(r *Result, o Outcome, source string) {
	r.Source = source
	switch o.Kind {
	case OutcomeCategory:
		r.Category = o.Category
		r.Confidence = 1.0
		r.Rationale = "classified as " + string(o.Category)
	case OutcomePersonal:
		r.IsPersonal = true
		r.Confidence = 1.0
		r.Rationale = "classifier marked transaction personal"
	case OutcomeManualReview:
		r.NeedsReview = true
		r.Rationale = "classifier requested manual review"
	case OutcomeUnrecognized:
		r.NeedsReview = true
		r.Rationale = "unrecognized classifier response: " + o.Raw
	}
}

// orderResults restores source-row order. Results arrive grouped (personal
// first, then remote) so a simple insertion sort by index is enough.
func orderResults(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j-1].Index > results[j].Index; j-- {
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}
