package shopify

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassAuth represents authentication/authorization failures.
	// These are never retried.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassRateLimit represents throttling by the upstream API.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transient connectivity failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassUpstream represents upstream-reported faults with a status code.
	ErrorClassUpstream ErrorClass = "upstream"

	// ErrorClassUnknown is the fail-safe class for everything else.
	ErrorClassUnknown ErrorClass = "unknown"
)

// AuthError indicates the stored credentials were rejected by the upstream.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("shopify auth error: %s", e.Message)
}

// RateLimitError indicates the upstream throttled the request. RetryAfter
// carries the server-provided wait, zero when the upstream did not send one.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("shopify rate limited (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("shopify rate limited: %s", e.Message)
}

// ConnectionError indicates the upstream could not be reached.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shopify connection error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("shopify connection error: %s", e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// UpstreamError indicates the upstream answered with an error status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify upstream error (status %d): %s", e.StatusCode, e.Message)
}

// Classify maps an upstream error to exactly one ErrorClass.
// Unrecognized errors classify as unknown, which is never retried.
func Classify(err error) ErrorClass {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return ErrorClassAuth
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return ErrorClassRateLimit
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return ErrorClassNetwork
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return ErrorClassUpstream
	}

	return ErrorClassUnknown
}
