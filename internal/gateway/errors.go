package gateway

import (
	"errors"
	"fmt"
)

// Category is the normalized gateway failure taxonomy.
type Category string

const (
	// CategoryRejected means the provider refused the request (bad input,
	// authentication, unknown job). Retrying will not help.
	CategoryRejected Category = "rejected"

	// CategoryUnavailable covers network failures and 5xx responses.
	CategoryUnavailable Category = "unavailable"

	// CategoryRateLimited is HTTP 429.
	CategoryRateLimited Category = "rate_limited"

	// CategoryTimeout is a request that exceeded its deadline upstream (408)
	// or locally.
	CategoryTimeout Category = "timeout"

	// CategoryBadData means the response could not be decoded.
	CategoryBadData Category = "bad_data"

	// CategoryInternal is anything that is not a GatewayError.
	CategoryInternal Category = "internal"
)

// ErrCircuitOpen is wrapped by the error returned while the breaker is open.
var ErrCircuitOpen = errors.New("gateway circuit open")

// GatewayError wraps provider failures with normalized categorization.
type GatewayError struct {
	Category   Category
	Op         string
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s [%s]: %s", e.Op, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized error. Unavailable, rate-limited and
// timeout errors are retryable.
func NewError(category Category, op, message string, underlying error) *GatewayError {
	return &GatewayError{
		Category:   category,
		Op:         op,
		Message:    message,
		Underlying: underlying,
		Retryable: category == CategoryUnavailable ||
			category == CategoryRateLimited ||
			category == CategoryTimeout,
	}
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// CategoryOf extracts the category, or CategoryInternal.
func CategoryOf(err error) Category {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return CategoryInternal
}

// IsPermanent reports whether the provider refused the call outright, as
// opposed to being unreachable.
func IsPermanent(err error) bool {
	switch CategoryOf(err) {
	case CategoryRejected, CategoryBadData:
		return true
	default:
		return false
	}
}
