package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func testConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	// Calls fail fast while open.
	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errBoom })
	cb.Execute(ctx, func() error { return errBoom })
	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, func() error { return errBoom })
	cb.Execute(ctx, func() error { return errBoom })

	if cb.State() != CircuitClosed {
		t.Fatalf("state = %s, want CLOSED after interleaved success", cb.State())
	}
}

func TestHalfOpenProbeClosesAfterSuccesses(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, func() error { return errBoom })
	}
	time.Sleep(60 * time.Millisecond)

	// First probe succeeds: half-open. Second success closes.
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", cb.State())
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %s, want CLOSED", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, func() error { return errBoom })
	}
	time.Sleep(60 * time.Millisecond)

	cb.Execute(ctx, func() error { return errBoom })
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN after failed probe", cb.State())
	}
}

func TestExecuteWithResultReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	got, err := ExecuteWithResult(cb, context.Background(), func() (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("result = (%d, %v)", got, err)
	}
}

func TestExecuteHonorsContextDeadline(t *testing.T) {
	cb := NewCircuitBreaker("test", testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := cb.Execute(ctx, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	stats := cb.Stats()
	if stats.TotalFailures != 1 {
		t.Fatalf("failures = %d, want timeout counted", stats.TotalFailures)
	}
}
