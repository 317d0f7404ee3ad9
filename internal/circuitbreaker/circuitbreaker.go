package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed means requests are allowed
	StateClosed State = iota
	// StateOpen means requests are blocked
	StateOpen
	// StateHalfOpen means limited requests are allowed to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Config contains circuit breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold uint32
	// Timeout is how long to wait in open state before trying half-open
	Timeout time.Duration
	// Interval clears the counts while closed; zero never clears them
	Interval time.Duration
	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		MaxRequests:      1,
	}
}

// CircuitBreaker guards calls to one dependency
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger *logger.ComponentLogger
}

// New creates a new circuit breaker
func New(name string, config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	b := &CircuitBreaker{
		name:   name,
		logger: logger.Get().WithComponent("circuitbreaker"),
	}

	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.onStateChange(fromGobreaker(from), fromGobreaker(to))
		},
	})

	metrics.SetCircuitBreakerState(name, int(StateClosed))
	return b
}

// Execute executes a function with circuit breaker protection.
// It returns ErrCircuitOpen without calling fn while the circuit is open.
func (b *CircuitBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// onStateChange records a state transition.
// It runs under the gobreaker lock and must not call back into b.cb.
func (b *CircuitBreaker) onStateChange(oldState, newState State) {
	metrics.SetCircuitBreakerState(b.name, int(newState))
	metrics.RecordCircuitBreakerTransition(b.name, oldState.String(), newState.String())

	b.logger.Info("circuit breaker state changed", logger.Fields{
		"name":      b.name,
		"old_state": oldState.String(),
		"new_state": newState.String(),
	})
}

// Name returns the breaker name
func (b *CircuitBreaker) Name() string {
	return b.name
}

// GetState returns the current state
func (b *CircuitBreaker) GetState() State {
	return fromGobreaker(b.cb.State())
}
