// Package resilience guards upstream calls with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"vision-assist/backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker short-circuits calls
var ErrCircuitOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed lets every call through
	StateClosed State = "closed"
	// StateOpen short-circuits every call until the cool-down elapses
	StateOpen State = "open"
	// StateHalfOpen lets a limited number of probe calls through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	CoolDown         time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every error except context cancellation.
	IsFailure func(error) bool
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures and
// closes again after SuccessThreshold successful probes
type CircuitBreaker struct {
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
	mu   sync.Mutex
	st   State
	fail uint
	succ uint
	// probes counts half-open calls still in flight
	probes uint
	next   time.Time

	totalRequests uint64
	totalFailures uint64
	openCount     uint64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CircuitBreaker{cfg: cfg, log: log, now: time.Now, st: StateClosed}
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute runs fn through the circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, ok := cb.allow()
	if !ok {
		cb.log.Warn("Circuit breaker preventing request", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn(ctx)

	if err != nil && cb.cfg.IsFailure(err) {
		cb.recordFailure(probe)
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
		return err
	}

	cb.recordSuccess(probe)
	return err
}

// allow reports whether a call may run and whether it runs as a half-open
// probe. At most SuccessThreshold probes are admitted, counting both the
// ones in flight and the ones that already succeeded.
func (cb *CircuitBreaker) allow() (probe bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.st {
	case StateOpen:
		if cb.now().Before(cb.next) {
			return false, false
		}
		cb.st = StateHalfOpen
		cb.succ = 0
		cb.probes = 0
		cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
	case StateClosed:
		return false, true
	}

	if cb.succ+cb.probes >= cb.cfg.SuccessThreshold {
		return false, false
	}
	cb.probes++
	return true, true
}

// settle must be called with mu held
func (cb *CircuitBreaker) settle(probe bool) {
	if probe && cb.probes > 0 {
		cb.probes--
	}
}

func (cb *CircuitBreaker) recordSuccess(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.settle(probe)

	switch cb.st {
	case StateClosed:
		cb.fail = 0
	case StateHalfOpen:
		cb.succ++
		if cb.succ >= cb.cfg.SuccessThreshold {
			cb.st = StateClosed
			cb.fail = 0
			cb.succ = 0
			cb.probes = 0
			cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
		}
	}
}

func (cb *CircuitBreaker) recordFailure(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.settle(probe)
	cb.totalFailures++

	switch cb.st {
	case StateClosed:
		cb.fail++
		if cb.fail >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// open must be called with mu held
func (cb *CircuitBreaker) open() {
	cb.st = StateOpen
	cb.openCount++
	cb.next = cb.now().Add(cb.cfg.CoolDown)
	cb.log.Info("Circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.fail,
		"nextAttempt", cb.next.Format(time.RFC3339),
	)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.st
}

// Stats returns counters for the health endpoint
func (cb *CircuitBreaker) Stats() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]any{
		"name":           cb.cfg.Name,
		"state":          string(cb.st),
		"total_requests": cb.totalRequests,
		"total_failures": cb.totalFailures,
		"open_count":     cb.openCount,
	}
}
