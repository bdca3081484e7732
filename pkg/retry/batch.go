package retry

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultBatchConcurrency bounds in-flight operations when the caller does
// not pick a limit. Kept small to respect upstream rate limits.
const DefaultBatchConcurrency = 5

// BatchOperation is one independently retryable unit in a batch.
type BatchOperation struct {
	// Name identifies the operation in logs and outcomes.
	Name string

	// Op is the work to run. It is retried per the executor's policy.
	Op Operation
}

// Outcome is the terminal result of one batch operation. Outcomes are
// independent: a sibling's failure never shows up here.
type Outcome struct {
	// Name is the submitting operation's name.
	Name string

	// Value is the operation result, nil on failure.
	Value any

	// Err is the final classified error after retries, nil on success.
	Err error

	// Attempts is how many times the operation ran.
	Attempts int
}

// Success reports whether the operation completed without error.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// ExecuteBatch runs the operations concurrently, each wrapped in this
// executor's retry policy, with at most concurrency in flight at once.
// Operations beyond the bound wait for a slot.
//
// Every operation runs to completion (success or exhausted retries); one
// failure never cancels or blocks siblings. The returned slice has exactly
// one Outcome per submitted operation, in submission order.
func (e *Executor) ExecuteBatch(ctx context.Context, ops []BatchOperation, concurrency int) []Outcome {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	outcomes := make([]Outcome, len(ops))
	sem := semaphore.NewWeighted(int64(concurrency))
	done := make(chan struct{})

	for i, op := range ops {
		go func(i int, op BatchOperation) {
			defer func() { done <- struct{}{} }()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{Name: op.Name, Err: err}
				return
			}
			defer sem.Release(1)

			value, state, err := e.ExecuteWithState(ctx, op.Name, op.Op)
			outcomes[i] = Outcome{
				Name:     op.Name,
				Value:    value,
				Err:      err,
				Attempts: state.Attempts,
			}
		}(i, op)
	}

	for range ops {
		<-done
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success() {
			succeeded++
		}
	}
	e.logger.Info().
		Int("total", len(ops)).
		Int("succeeded", succeeded).
		Int("failed", len(ops)-succeeded).
		Msg("Batch execution complete")

	return outcomes
}
