package classify

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarterly-dev/quarterly/internal/category"
)

// Sentinel responses the remote classifier may return instead of a category
// code. These are first-class outcomes, distinct from unrecognized responses.
const (
	SentinelPersonal     = "PERSONAL"
	SentinelManualReview = "MANUAL_REVIEW"
)

//go:generate mockgen -source=gateway.go -destination=gateway_mock.go -package=classify

// Request is the context sent to the remote classifier for one row.
type Request struct {
	Row          TransactionRow
	BusinessType category.BusinessType
	Vocabulary   []category.Code
}

// Classifier is the remote text-classification capability. Implementations
// return a member of the vocabulary, a sentinel, or anything else (a protocol
// violation the gateway handles).
type Classifier interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// OutcomeKind discriminates the closed set of classifier outcomes.
type OutcomeKind int

const (
	OutcomeCategory OutcomeKind = iota
	OutcomePersonal
	OutcomeManualReview
	OutcomeUnrecognized
)

// Outcome is the classifier's response modelled as a variant, produced at the
// gateway boundary so no downstream logic touches raw strings.
type Outcome struct {
	Kind     OutcomeKind
	Category category.Code // set when Kind == OutcomeCategory
	Raw      string        // original response, kept for unrecognized outcomes
}

// Gateway wraps the remote Classifier with per-call timeouts, retry with
// backoff, and response validation.
type Gateway struct {
	classifier Classifier
	retry      RetryConfig
	timeout    time.Duration
	log        zerolog.Logger
}

// NewGateway creates a gateway around a classifier. A zero timeout defaults
// to 20 seconds per attempt.
func NewGateway(c Classifier, retry RetryConfig, timeout time.Duration, log zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gateway{classifier: c, retry: retry, timeout: timeout, log: log}
}

// Classify sends one row to the remote classifier and normalizes the
// response. Transient failures retry with backoff; non-retryable failures
// abort remaining attempts. On exhausting attempts the row's error is
// returned, never a defaulted category.
func (g *Gateway) Classify(ctx context.Context, row TransactionRow, schema *category.Schema) (Outcome, error) {
	req := Request{
		Row:          row,
		BusinessType: schema.BusinessType,
		Vocabulary:   schema.Vocabulary(),
	}

	raw, err := WithRetry(ctx, g.retry, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.classifier.Classify(attemptCtx, req)
	})
	if err != nil {
		if cErr, ok := err.(*Error); ok {
			return Outcome{}, cErr
		}
		return Outcome{}, &Error{
			Code:    ErrClassificationFailure,
			Message: "classifier attempts exhausted",
			Cause:   err,
		}
	}

	outcome := ParseOutcome(raw, schema)
	if outcome.Kind == OutcomeUnrecognized {
		g.log.Warn().
			Str("response", raw).
			Str("businessType", string(schema.BusinessType)).
			Msg("classifier returned unrecognized category")
	}
	return outcome, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// ParseOutcome maps a raw classifier response onto the outcome variant.
// Matching against the vocabulary is case- and punctuation-insensitive; a
// structurally valid but unrecognized response becomes OutcomeUnrecognized,
// never a guessed category.
func ParseOutcome(raw string, schema *category.Schema) Outcome {
	trimmed := strings.TrimSpace(raw)

	switch strings.ToUpper(trimmed) {
	case SentinelPersonal:
		return Outcome{Kind: OutcomePersonal, Raw: raw}
	case SentinelManualReview:
		return Outcome{Kind: OutcomeManualReview, Raw: raw}
	}

	normalized := normalizeToken(trimmed)
	for _, code := range schema.Vocabulary() {
		if normalizeToken(string(code)) == normalized {
			return Outcome{Kind: OutcomeCategory, Category: code, Raw: raw}
		}
	}
	return Outcome{Kind: OutcomeUnrecognized, Raw: raw}
}

func normalizeToken(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}
