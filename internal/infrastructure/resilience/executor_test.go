package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	errTimeout := errors.New("embeddings request timed out")
	attempts := 0
	err := exec.Execute(context.Background(), "ollama.embeddings", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTimeout
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTimeout),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnNonRetryableFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	errBadRequest := errors.New("model not found")
	attempts := 0
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		return errBadRequest
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteHonorsCancellationDuringBackoff(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 250 * time.Millisecond,
		RetryMaxBackoff:     250 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errDown := errors.New("connection refused")
	attempts := 0
	err := exec.Execute(ctx, "qdrant.search", func(context.Context) error {
		attempts++
		cancel()
		return errDown
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errDown) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected backoff to abort after 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("broker unavailable")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
			return errDown
		}, classifier)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected broker error on call %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		t.Fatal("open circuit must not reach the broker")
		return nil
	}, classifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected gobreaker open state, got %v", err)
	}
}

func TestBreakersAreIsolatedPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("collection unreachable")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "qdrant.upsert", func(context.Context) error {
			return errDown
		}, classifier)
	}

	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("search breaker must be independent of upsert, got %v", err)
	}
}
