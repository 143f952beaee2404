package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
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

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
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

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

type observerFake struct {
	retries []string
	states  []string
}

func (o *observerFake) ObserveRetry(operation string) { o.retries = append(o.retries, operation) }

func (o *observerFake) ObserveBreakerState(operation string, state string) {
	o.states = append(o.states, operation+":"+state)
}

func TestExecuteReportsRetriesAndBreakerTransitions(t *testing.T) {
	obs := &observerFake{}
	exec := NewExecutorWithObserver(Config{
		RetryMaxAttempts:        2,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, obs)

	errTemp := errors.New("temporary")
	_ = exec.Execute(context.Background(), "backend.login", func(context.Context) error {
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	if len(obs.retries) != 1 || obs.retries[0] != "backend.login" {
		t.Fatalf("retries = %v", obs.retries)
	}
	if len(obs.states) != 1 || obs.states[0] != "backend.login:open" {
		t.Fatalf("states = %v", obs.states)
	}
	if got := exec.BreakerState("backend.login"); got != "open" {
		t.Fatalf("BreakerState() = %q", got)
	}
	if got := exec.BreakerState("unused"); got != "closed" {
		t.Fatalf("BreakerState(unused) = %q", got)
	}
}

func TestCallReturnsResult(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false, RetryInitialBackoff: time.Millisecond, RetryMaxBackoff: time.Millisecond})

	attempts := 0
	got, err := Call(context.Background(), exec, "gateway.create_order", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &HTTPStatusError{Operation: "create order", StatusCode: 503, Status: "503 Service Unavailable"}
		}
		return "order_1", nil
	}, ClassifyHTTPError)
	if err != nil || got != "order_1" {
		t.Fatalf("Call() = %q, %v", got, err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestCallWithoutExecutor(t *testing.T) {
	got, err := Call(context.Background(), nil, "op", func(context.Context) (int, error) { return 7, nil }, nil)
	if err != nil || got != 7 {
		t.Fatalf("Call(nil) = %d, %v", got, err)
	}
}

func TestAttemptTimeoutBoundsEachAttempt(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:      false,
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		AttemptTimeout:      20 * time.Millisecond,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "slow", func(ctx context.Context) error {
		attempts++
		<-ctx.Done()
		return ctx.Err()
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestNormalizeKeepsMaxBackoffAboveInitial(t *testing.T) {
	cfg := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: time.Millisecond}.normalize()
	if cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("RetryMaxBackoff = %v", cfg.RetryMaxBackoff)
	}
	if def := (Config{}).normalize(); def.RetryMaxBackoff != 2*time.Second || def.RetryMaxAttempts != 3 {
		t.Fatalf("defaults = %+v", def)
	}
}

func TestPolicyForOperationFamilies(t *testing.T) {
	cfg := DefaultConfig().normalize()
	tests := []struct {
		operation    string
		wantAttempts int
		wantTimeout  time.Duration
	}{
		{operation: "razorpay.create_order", wantAttempts: 2, wantTimeout: 10 * time.Second},
		{operation: "backend.record_payment", wantAttempts: 3, wantTimeout: 15 * time.Second},
		{operation: "cloudinary.upload", wantAttempts: 2, wantTimeout: time.Minute},
		{operation: "nats.publish", wantAttempts: 3, wantTimeout: 2 * time.Second},
		{operation: "unknown", wantAttempts: 3, wantTimeout: 0},
	}
	for _, tc := range tests {
		t.Run(tc.operation, func(t *testing.T) {
			attempts, timeout := cfg.policyFor(tc.operation)
			if attempts != tc.wantAttempts || timeout != tc.wantTimeout {
				t.Fatalf("policyFor() = %d, %v; want %d, %v", attempts, timeout, tc.wantAttempts, tc.wantTimeout)
			}
		})
	}
}

func TestExecuteUsesFamilyAttemptBudget(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:      false,
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		Policies:            map[string]Policy{FamilyGateway: {MaxAttempts: 2}},
	})
	retryAll := func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	gatewayAttempts := 0
	_ = exec.Execute(context.Background(), "razorpay.create_order", func(context.Context) error {
		gatewayAttempts++
		return errors.New("reset")
	}, retryAll)
	otherAttempts := 0
	_ = exec.Execute(context.Background(), "backend.profile", func(context.Context) error {
		otherAttempts++
		return errors.New("reset")
	}, retryAll)

	if gatewayAttempts != 2 || otherAttempts != 5 {
		t.Fatalf("attempts gateway/backend = %d/%d, want 2/5", gatewayAttempts, otherAttempts)
	}
}
