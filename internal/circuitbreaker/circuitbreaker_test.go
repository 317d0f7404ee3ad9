package circuitbreaker

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

func init() {
	// Initialize logger for tests
	logger.Init(logger.InfoLevel, "json", os.Stdout)
}

func TestNewCircuitBreaker(t *testing.T) {
	cb := New("test", nil)
	if cb == nil {
		t.Fatal("expected non-nil circuit breaker")
	}

	if cb.Name() != "test" {
		t.Errorf("expected name 'test', got %s", cb.Name())
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected initial state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.FailureThreshold != 5 {
		t.Errorf("expected FailureThreshold 5, got %d", cfg.FailureThreshold)
	}

	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected Timeout 60s, got %v", cfg.Timeout)
	}

	if cfg.MaxRequests != 1 {
		t.Errorf("expected MaxRequests 1, got %d", cfg.MaxRequests)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.state.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.state.String())
			}
		})
	}
}

func TestExecuteSuccess(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 3,
		Timeout:          1 * time.Second,
		MaxRequests:      2,
	})

	err := cb.Execute(func() error {
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestExecuteFailure(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 3,
		Timeout:          1 * time.Second,
		MaxRequests:      2,
	})

	testErr := errors.New("test error")

	err := cb.Execute(func() error {
		return testErr
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}

	// One failure is below the threshold
	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestCircuitOpens(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 3,
		Timeout:          1 * time.Second,
		MaxRequests:      2,
	})

	testErr := errors.New("test error")

	// Execute failures up to threshold
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error {
			return testErr
		})
	}

	// Circuit should now be open
	if cb.GetState() != StateOpen {
		t.Errorf("expected state %s, got %s", StateOpen, cb.GetState())
	}

	// Next request should fail immediately
	err := cb.Execute(func() error {
		t.Error("function should not be called when circuit is open")
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 2,
		Timeout:          1 * time.Second,
	})

	testErr := errors.New("test error")

	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return testErr })

	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestCircuitHalfOpen(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 2,
		Timeout:          100 * time.Millisecond,
		MaxRequests:      3,
	})

	testErr := errors.New("test error")

	// Open the circuit
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return testErr
		})
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected state %s, got %s", StateOpen, cb.GetState())
	}

	// Wait for timeout
	time.Sleep(150 * time.Millisecond)

	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected state %s, got %s", StateHalfOpen, cb.GetState())
	}

	// One success is not enough to close with MaxRequests 3
	err := cb.Execute(func() error {
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if cb.GetState() != StateHalfOpen {
		t.Errorf("expected state %s, got %s", StateHalfOpen, cb.GetState())
	}
}

func TestCircuitCloses(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 2,
		Timeout:          100 * time.Millisecond,
		MaxRequests:      2,
	})

	testErr := errors.New("test error")

	// Open the circuit
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return testErr
		})
	}

	// Wait for timeout
	time.Sleep(150 * time.Millisecond)

	// Execute successful requests to close circuit
	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error {
			return nil
		})
		if err != nil {
			t.Errorf("request %d: expected no error, got %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s, got %s", StateClosed, cb.GetState())
	}
}

func TestHalfOpenFailureGoesBackToOpen(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 2,
		Timeout:          100 * time.Millisecond,
		MaxRequests:      3,
	})

	testErr := errors.New("test error")

	// Open the circuit
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return testErr
		})
	}

	// Wait for timeout
	time.Sleep(150 * time.Millisecond)

	// Execute one successful request (now half-open)
	_ = cb.Execute(func() error {
		return nil
	})

	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected state %s, got %s", StateHalfOpen, cb.GetState())
	}

	// Execute one failing request - should go back to open
	_ = cb.Execute(func() error {
		return testErr
	})

	if cb.GetState() != StateOpen {
		t.Errorf("expected state %s, got %s", StateOpen, cb.GetState())
	}
}

func TestConcurrentAccess(t *testing.T) {
	cb := New("test", &Config{
		FailureThreshold: 100,
		Timeout:          1 * time.Second,
		MaxRequests:      50,
	})

	var wg sync.WaitGroup
	iterations := 100

	// Concurrent successful executions
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(func() error {
				return nil
			})
		}()
	}

	wg.Wait()

	if cb.GetState() != StateClosed {
		t.Errorf("expected state %s, got %s", StateClosed, cb.GetState())
	}
}
