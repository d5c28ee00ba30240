// Package errors provides the notifyflow error taxonomy and gateway retries.
//
// Errors are classified by how the router reacts to them:
//   - Configuration: a taxonomy or wiring bug; fatal for the call, never retried
//   - RoutingPolicy: a missing or empty recipient set; dispatch aborts with a warning
//   - Delivery: a handler failed; logged, sibling deliveries continue
//   - SideEffect: audit, reminder, or usage bookkeeping failed; logged only
//   - RaceGuard: a concurrent observation was discarded by the processing guard
//   - Transient: a gateway call may succeed if retried
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryDelivery indicates a channel failed to deliver. This is the
	// fallback for uncategorized errors.
	CategoryDelivery Category = iota

	// CategoryConfiguration indicates a build-time or wiring bug.
	CategoryConfiguration

	// CategoryRoutingPolicy indicates the event violates a routing rule.
	CategoryRoutingPolicy

	// CategorySideEffect indicates best-effort bookkeeping failed.
	CategorySideEffect

	// CategoryRaceGuard indicates a concurrent duplicate was discarded.
	CategoryRaceGuard

	// CategoryTransient indicates retry will likely help.
	CategoryTransient
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryDelivery:
		return "delivery"
	case CategoryConfiguration:
		return "configuration"
	case CategoryRoutingPolicy:
		return "routing_policy"
	case CategorySideEffect:
		return "side_effect"
	case CategoryRaceGuard:
		return "race_guard"
	case CategoryTransient:
		return "transient"
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

	// Retries is the number of attempts that have been made.
	Retries int

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

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, op string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  op,
	}
}

// Configuration creates a configuration error.
func Configuration(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryConfiguration, op)
}

// RoutingPolicy creates a routing policy violation.
func RoutingPolicy(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryRoutingPolicy, op)
}

// Delivery creates a delivery failure.
func Delivery(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryDelivery, op)
}

// SideEffect creates a side-effect failure.
func SideEffect(err error, op string) *CategorizedError {
	return NewCategorized(err, CategorySideEffect, op)
}

// Transient creates a transient error.
func Transient(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, op)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryDelivery
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429, httpErr.StatusCode >= 500:
			return CategoryTransient
		default:
			return CategoryDelivery
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	return CategoryDelivery
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsConfiguration reports whether the error is a configuration bug.
func IsConfiguration(err error) bool {
	return Categorize(err) == CategoryConfiguration
}
