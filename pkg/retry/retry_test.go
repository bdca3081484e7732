package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avollmaier/shopify-catalog-proxy/pkg/shopify"
)

// fastConfig keeps test runtimes low while still exercising real waits.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 1*time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.ExponentialBase != 2.0 {
		t.Errorf("ExponentialBase = %v, want 2.0", cfg.ExponentialBase)
	}
	if !cfg.Jitter {
		t.Error("Jitter should default to true")
	}
	want := []int{500, 502, 503, 504}
	if len(cfg.RetryableStatusCodes) != len(want) {
		t.Fatalf("RetryableStatusCodes = %v, want %v", cfg.RetryableStatusCodes, want)
	}
	for i, code := range want {
		if cfg.RetryableStatusCodes[i] != code {
			t.Errorf("RetryableStatusCodes[%d] = %d, want %d", i, cfg.RetryableStatusCodes[i], code)
		}
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	e := New(fastConfig())

	calls := 0
	result, state, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if calls != 1 || state.Attempts != 1 {
		t.Errorf("calls = %d, state.Attempts = %d, want 1/1", calls, state.Attempts)
	}
	if state.TotalDelay != 0 {
		t.Errorf("TotalDelay = %v, want 0", state.TotalDelay)
	}
}

func TestExecute_AuthErrorNeverRetried(t *testing.T) {
	e := New(fastConfig())
	authErr := &shopify.AuthError{Message: "invalid token"}

	calls := 0
	start := time.Now()
	_, state, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, authErr
	})
	elapsed := time.Since(start)

	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1", calls)
	}
	if state.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", state.Attempts)
	}
	if state.TotalDelay != 0 {
		t.Errorf("TotalDelay = %v, want 0 (no waits)", state.TotalDelay)
	}
	if elapsed > 50*time.Millisecond {
		t.Errorf("auth failure took %v, should surface immediately", elapsed)
	}
	// Surfaces unchanged, not wrapped.
	if err != error(authErr) {
		t.Errorf("err = %v, want the original auth error instance", err)
	}
}

func TestExecute_RateLimitHonorsRetryAfter(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 1 * time.Millisecond // computed backoff would floor at 100ms
	e := New(cfg)

	retryAfter := 300 * time.Millisecond
	calls := 0
	start := time.Now()
	result, state, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		if calls <= 2 {
			return nil, &shopify.RateLimitError{Message: "throttled", RetryAfter: retryAfter}
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Two waits of exactly retryAfter, not computed backoff.
	if elapsed < 2*retryAfter || elapsed > 2*retryAfter+200*time.Millisecond {
		t.Errorf("elapsed = %v, want ~%v", elapsed, 2*retryAfter)
	}
	if state.TotalDelay != 2*retryAfter {
		t.Errorf("TotalDelay = %v, want %v", state.TotalDelay, 2*retryAfter)
	}
}

func TestExecute_RateLimitWithoutRetryAfterUsesBackoff(t *testing.T) {
	e := New(fastConfig())

	calls := 0
	_, _, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, &shopify.RateLimitError{Message: "throttled"}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExecute_RateLimitDisabled(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryOnRateLimit = false
	e := New(cfg)

	calls := 0
	_, _, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, &shopify.RateLimitError{Message: "throttled"}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 when rate limit retries are disabled", calls)
	}
	var rateErr *shopify.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Errorf("expected RateLimitError to surface, got %v", err)
	}
}

func TestExecute_ExhaustionReturnsLastErrorUnwrapped(t *testing.T) {
	e := New(fastConfig())

	errs := []error{
		&shopify.ConnectionError{Message: "first"},
		&shopify.ConnectionError{Message: "second"},
		&shopify.ConnectionError{Message: "third"},
	}
	calls := 0
	_, state, err := e.ExecuteWithState(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, errs[calls-1]
	})

	if calls != 3 {
		t.Errorf("calls = %d, want MaxAttempts=3", calls)
	}
	if state.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", state.Attempts)
	}
	// Exactly the third error, no wrapping.
	if err != errs[2] {
		t.Errorf("err = %v, want the last error instance", err)
	}
}

func TestExecute_UpstreamErrorAllowList(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantCalls int
	}{
		{name: "retryable 503", code: 503, wantCalls: 3},
		{name: "retryable 500", code: 500, wantCalls: 3},
		{name: "non-retryable 501", code: 501, wantCalls: 1},
		{name: "non-retryable 418", code: 418, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(fastConfig())

			calls := 0
			upErr := &shopify.UpstreamError{StatusCode: tt.code, Message: "boom"}
			_, err := e.Execute(context.Background(), "op", func(context.Context) (any, error) {
				calls++
				return nil, upErr
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			var got *shopify.UpstreamError
			if !errors.As(err, &got) || got.StatusCode != tt.code {
				t.Errorf("expected UpstreamError with code %d, got %v", tt.code, err)
			}
		})
	}
}

func TestExecute_UpstreamRetryDisabled(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryOnUpstreamError = false
	e := New(cfg)

	calls := 0
	e.Execute(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, &shopify.UpstreamError{StatusCode: 503}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 when upstream retries are disabled", calls)
	}
}

func TestExecute_UnclassifiedErrorNeverRetried(t *testing.T) {
	e := New(fastConfig())

	calls := 0
	plainErr := errors.New("something strange")
	_, err := e.Execute(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, plainErr
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 for unclassified error", calls)
	}
	if err != plainErr {
		t.Errorf("err = %v, want the original error", err)
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 200 * time.Millisecond
	cfg.Jitter = false
	e := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := e.Execute(ctx, "op", func(context.Context) (any, error) {
		calls++
		return nil, &shopify.ConnectionError{Message: "down"}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1: cancellation during backoff must not issue the next attempt", calls)
	}
	if !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
}

func TestExecute_BackoffGrowsExponentially(t *testing.T) {
	cfg := Config{
		MaxAttempts:            3,
		BaseDelay:              150 * time.Millisecond,
		MaxDelay:               2 * time.Second,
		ExponentialBase:        2.0,
		Jitter:                 false,
		RetryOnConnectionError: true,
	}
	e := New(cfg)

	var timestamps []time.Time
	e.Execute(context.Background(), "op", func(context.Context) (any, error) {
		timestamps = append(timestamps, time.Now())
		return nil, &shopify.ConnectionError{Message: "down"}
	})

	if len(timestamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(timestamps))
	}

	first := timestamps[1].Sub(timestamps[0])
	second := timestamps[2].Sub(timestamps[1])

	if first < 140*time.Millisecond || first > 250*time.Millisecond {
		t.Errorf("first delay %v outside expected ~150ms", first)
	}
	if second < 290*time.Millisecond || second > 450*time.Millisecond {
		t.Errorf("second delay %v outside expected ~300ms", second)
	}
}

func TestExecute_MaxDelayCap(t *testing.T) {
	cfg := Config{
		MaxAttempts:            2,
		BaseDelay:              100 * time.Millisecond,
		MaxDelay:               120 * time.Millisecond,
		ExponentialBase:        10.0,
		Jitter:                 false,
		RetryOnConnectionError: true,
	}
	e := New(cfg)

	start := time.Now()
	e.Execute(context.Background(), "op", func(context.Context) (any, error) {
		return nil, &shopify.ConnectionError{Message: "down"}
	})
	elapsed := time.Since(start)

	// One retry; the second attempt's delay would be 1s uncapped.
	if elapsed > 300*time.Millisecond {
		t.Errorf("elapsed = %v, delay not capped at MaxDelay", elapsed)
	}
}

func TestDelayFor_JitterBounds(t *testing.T) {
	cfg := Config{
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
	e := New(cfg)

	connErr := &shopify.ConnectionError{Message: "down"}
	for i := 0; i < 50; i++ {
		d := e.delayFor(shopify.ErrorClassNetwork, connErr, 1)
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±10%% of 1s", d)
		}
	}
}

func TestDelayFor_Floor(t *testing.T) {
	cfg := Config{
		BaseDelay:       1 * time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
	}
	e := New(cfg)

	d := e.delayFor(shopify.ErrorClassNetwork, &shopify.ConnectionError{}, 1)
	if d < minDelay {
		t.Errorf("delay %v below floor %v", d, minDelay)
	}
}

func TestNew_ClampsMaxAttempts(t *testing.T) {
	e := New(Config{MaxAttempts: 0})

	calls := 0
	e.Execute(context.Background(), "op", func(context.Context) (any, error) {
		calls++
		return nil, errors.New("nope")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
