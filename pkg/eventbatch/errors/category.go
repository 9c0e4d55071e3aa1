// Package errors classifies delivery failures and computes retry backoff.
//
// The dispatcher never surfaces delivery errors to event producers. It uses
// the category of a failure for logging and metrics, and the Backoff type to
// pace timer re-arming when a failed batch is retried without new activity.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how a delivery error should be handled.
type Category int

const (
	// CategoryTransient indicates a later attempt will likely succeed.
	// Examples: rate limits, timeouts, 5xx responses, broken connections.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retrying the same batch won't help.
	// Examples: authentication failures, malformed payloads.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%s (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as transient.
func Transient(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: op}
}

// Permanent marks err as permanent.
func Permanent(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: op}
}

// Categorize determines how a delivery error should be handled.
// Unknown errors are treated as transient: a delivery that failed for an
// unrecognized reason is still worth another attempt within the retry budget.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 408, 425, 429:
			return CategoryTransient
		default:
			if httpErr.StatusCode >= 500 {
				return CategoryTransient
			}
			return CategoryPermanent
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	return CategoryTransient
}

// IsRetryable reports whether the error is worth another delivery attempt.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
