package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteNeverRetries(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	}, nil)
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	errDown := errors.New("down")
	fail := func(context.Context) error { return errDown }

	for i := 0; i < 2; i++ {
		if err := exec.Execute(context.Background(), "ocr", fail, nil); !errors.Is(err, errDown) {
			t.Fatalf("attempt %d: expected down error, got %v", i, err)
		}
	}

	called := false
	err := exec.Execute(context.Background(), "ocr", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if called {
		t.Fatalf("callback must not run while circuit is open")
	}
}

func TestExecuteIgnoresNonFailuresForBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.1,
	}, nil)

	errClient := errors.New("bad request")
	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "interpret", func(context.Context) error {
			return errClient
		}, func(err error) bool { return !errors.Is(err, errClient) })
		if !errors.Is(err, errClient) {
			t.Fatalf("attempt %d: expected client error, got %v", i, err)
		}
	}
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	exec := NewExecutor(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected context.Canceled without call, got %v (called=%v)", err, called)
	}
}
