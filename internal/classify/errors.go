package classify

import "fmt"

// ErrorCode identifies a specific classification failure type.
type ErrorCode string

const (
	ErrMissingAmount              ErrorCode = "MISSING_AMOUNT"
	ErrMissingDescription         ErrorCode = "MISSING_DESCRIPTION"
	ErrClassifierTimeout          ErrorCode = "CLASSIFIER_TIMEOUT"
	ErrClassifierRateLimited      ErrorCode = "CLASSIFIER_RATE_LIMITED"
	ErrClassifierUnavailable      ErrorCode = "CLASSIFIER_UNAVAILABLE"
	ErrClassifierAuth             ErrorCode = "CLASSIFIER_AUTH"
	ErrClassifierQuotaExhausted   ErrorCode = "CLASSIFIER_QUOTA_EXHAUSTED"
	ErrClassifierMalformed        ErrorCode = "CLASSIFIER_MALFORMED_RESPONSE"
	ErrClassificationFailure      ErrorCode = "CLASSIFICATION_SERVICE_FAILURE"
	ErrNoClassifiableTransactions ErrorCode = "NO_CLASSIFIABLE_TRANSACTIONS"
)

// Error is a structured error for classification failures.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}
