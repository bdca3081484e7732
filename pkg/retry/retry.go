// Package retry executes upstream operations with error-classification-aware
// exponential backoff. Authentication failures and unclassified errors fail
// immediately; rate limits honor the server-provided retry-after; connectivity
// and allow-listed upstream faults back off exponentially with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avollmaier/shopify-catalog-proxy/pkg/shopify"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// ErrAborted is returned when the context is cancelled during a backoff wait.
// The retry sequence stops without issuing another attempt.
var ErrAborted = errors.New("retry aborted by context")

// minDelay is the floor applied to every computed backoff delay.
const minDelay = 100 * time.Millisecond

// Config holds the retry policy.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// ExponentialBase is the backoff growth factor per attempt.
	ExponentialBase float64

	// Jitter perturbs each computed delay by ±10% to avoid synchronized
	// retry storms across concurrent callers.
	Jitter bool

	// RetryOnRateLimit enables retries for rate-limit errors.
	RetryOnRateLimit bool

	// RetryOnConnectionError enables retries for transient connectivity
	// failures.
	RetryOnConnectionError bool

	// RetryOnUpstreamError enables retries for upstream faults whose status
	// code is in RetryableStatusCodes.
	RetryOnUpstreamError bool

	// RetryableStatusCodes is the allow-list of retryable upstream fault
	// codes. All other codes surface immediately.
	RetryableStatusCodes []int
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:            3,
		BaseDelay:              1 * time.Second,
		MaxDelay:               30 * time.Second,
		ExponentialBase:        2.0,
		Jitter:                 true,
		RetryOnRateLimit:       true,
		RetryOnConnectionError: true,
		RetryOnUpstreamError:   true,
		RetryableStatusCodes:   []int{500, 502, 503, 504},
	}
}

// AggressiveConfig retries more often with shorter initial delays. Suited to
// batch imports where throughput matters more than per-call latency.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	cfg.BaseDelay = 500 * time.Millisecond
	cfg.MaxDelay = 60 * time.Second
	cfg.ExponentialBase = 1.5
	return cfg
}

// ConservativeConfig retries only rate limits, once. Suited to interactive
// request paths where a stale error beats a long wait.
func ConservativeConfig() Config {
	return Config{
		MaxAttempts:          2,
		BaseDelay:            2 * time.Second,
		MaxDelay:             10 * time.Second,
		ExponentialBase:      2.0,
		Jitter:               true,
		RetryOnRateLimit:     true,
		RetryableStatusCodes: []int{500, 502, 503, 504},
	}
}

// Operation is a retryable unit of work. The operation must be idempotent:
// it may run up to Config.MaxAttempts times.
type Operation func(ctx context.Context) (any, error)

// State captures per-call retry observability. It exists only for the
// duration of one Execute call.
type State struct {
	// Attempts is the number of times the operation ran.
	Attempts int

	// TotalDelay is the accumulated backoff time.
	TotalDelay time.Duration

	// LastErr is the most recent failure, nil after a success.
	LastErr error
}

// Executor re-invokes failing operations per its Config.
type Executor struct {
	config Config
	logger zerolog.Logger
}

// New creates an Executor with the given policy.
func New(config Config) *Executor {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Executor{
		config: config,
		logger: log.With().Str("component", "retry").Logger(),
	}
}

// Execute runs op, retrying per policy, and returns its result or the last
// error with its original classification and payload untouched.
func (e *Executor) Execute(ctx context.Context, name string, op Operation) (any, error) {
	result, _, err := e.ExecuteWithState(ctx, name, op)
	return result, err
}

// ExecuteWithState is Execute plus the final retry state for observability.
func (e *Executor) ExecuteWithState(ctx context.Context, name string, op Operation) (any, State, error) {
	var state State

	for {
		state.Attempts++
		result, err := op(ctx)
		if err == nil {
			if state.Attempts > 1 {
				e.logger.Info().
					Str("operation", name).
					Int("attempts", state.Attempts).
					Dur("total_delay", state.TotalDelay).
					Msg("Operation succeeded after retry")
			}
			state.LastErr = nil
			return result, state, nil
		}

		state.LastErr = err
		class := shopify.Classify(err)

		if !e.shouldRetry(class, err) || state.Attempts >= e.config.MaxAttempts {
			if state.Attempts >= e.config.MaxAttempts && e.shouldRetry(class, err) {
				retryExhaustedTotal.WithLabelValues(string(class)).Inc()
				e.logger.Warn().
					Str("operation", name).
					Str("error_class", string(class)).
					Int("max_attempts", e.config.MaxAttempts).
					Msg("Retry attempts exhausted")
			} else {
				e.logger.Debug().
					Str("operation", name).
					Str("error_class", string(class)).
					Msg("Error not retryable")
			}
			// The last error surfaces unwrapped so callers keep access to
			// retry-after values and fault codes via errors.As.
			return nil, state, err
		}

		delay := e.delayFor(class, err, state.Attempts)
		state.TotalDelay += delay

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

		e.logger.Warn().
			Str("operation", name).
			Str("error_class", string(class)).
			Int("attempt", state.Attempts).
			Dur("backoff", delay).
			Err(err).
			Msg("Retrying after backoff")

		// The wait and the cancellation check form one atomic unit: a
		// cancelled context aborts the sequence without issuing the next
		// attempt, never mid-delay in a way that could double-schedule.
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, state, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		case <-timer.C:
		}
	}
}

// shouldRetry reports whether the policy permits retrying an error of the
// given class. Auth failures and unclassified errors never retry.
func (e *Executor) shouldRetry(class shopify.ErrorClass, err error) bool {
	switch class {
	case shopify.ErrorClassAuth:
		return false
	case shopify.ErrorClassRateLimit:
		return e.config.RetryOnRateLimit
	case shopify.ErrorClassNetwork:
		return e.config.RetryOnConnectionError
	case shopify.ErrorClassUpstream:
		if !e.config.RetryOnUpstreamError {
			return false
		}
		var upErr *shopify.UpstreamError
		if !errors.As(err, &upErr) {
			return false
		}
		return slices.Contains(e.config.RetryableStatusCodes, upErr.StatusCode)
	default:
		return false
	}
}

// delayFor computes the wait before the next attempt. Rate-limit errors with
// a server-provided retry-after use it verbatim; everything else gets capped
// exponential backoff with optional jitter, floored at minDelay.
func (e *Executor) delayFor(class shopify.ErrorClass, err error, attempt int) time.Duration {
	if class == shopify.ErrorClassRateLimit {
		var rateErr *shopify.RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
			return rateErr.RetryAfter
		}
	}

	delay := time.Duration(float64(e.config.BaseDelay) * math.Pow(e.config.ExponentialBase, float64(attempt-1)))
	if delay > e.config.MaxDelay {
		delay = e.config.MaxDelay
	}

	if e.config.Jitter {
		// ±10% uniform jitter.
		delay += time.Duration((rand.Float64()*0.2 - 0.1) * float64(delay))
	}

	if delay < minDelay {
		delay = minDelay
	}
	return delay
}
