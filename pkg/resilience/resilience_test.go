package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/errors"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerLifecycle(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	cb.Execute(fail)
	if cb.GetState() != StateClosed {
		t.Fatal("one failure should not open the circuit")
	}
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatal("expected open after threshold")
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("half-open probe should run, got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatal("failed probe should re-open")
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatal("successful probe should close")
	}

	want := []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "invalid", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, apperrors.ErrInvalidInput) },
	}, func() error {
		calls++
		return apperrors.ErrInvalidInput
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) || calls != 1 {
		t.Fatalf("non-retryable error should stop at once: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "always", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 2 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	err = WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestWithTimeoutValue(t *testing.T) {
	finished := make(chan struct{})
	got, err := WithTimeoutValue(context.Background(), 5*time.Millisecond, "late", func(ctx context.Context) ([]string, error) {
		defer close(finished)
		time.Sleep(50 * time.Millisecond)
		return []string{"late"}, nil
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if got != nil {
		t.Errorf("timed out call returned %v, want zero value", got)
	}
	<-finished

	got, err = WithTimeoutValue(context.Background(), time.Second, "fast", func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	if err != nil || len(got) != 2 {
		t.Fatalf("got %v, %v", got, err)
	}

	n, err := WithTimeoutValue(context.Background(), 0, "unbounded", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || n != 7 {
		t.Fatalf("without timeout: got %d, %v", n, err)
	}
}
