// Package resiliency guards external calls made by modules or gates with a
// per-dependency circuit breaker, so one degraded integration fails fast
// instead of starving unrelated work.
package resiliency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is the distinguished error returned while a breaker rejects
// calls. Callers match it with errors.Is.
var ErrCircuitOpen = errors.New("resiliency: circuit open")

// State names follow the conventional three-state machine.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config tunes a breaker.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // consecutive probe successes before closing
	Cooldown         time.Duration // open -> half-open delay
	MaxProbes        int           // concurrent probes allowed while half-open
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         10 * time.Second,
		MaxProbes:        1,
	}
}

// Snapshot is the externally visible breaker state.
type Snapshot struct {
	Name           string        `json:"name"`
	State          State         `json:"state"`
	FailureCount   int           `json:"failure_count"`
	SuccessCount   int           `json:"success_count"`
	TimeUntilRetry time.Duration `json:"time_until_retry"`
}

// CircuitBreaker is a three-state machine: closed (calls pass, failures
// counted), open (fail fast), half-open (bounded probes after the cooldown).
// The open -> half-open transition is time-triggered, never externally
// signaled.
type CircuitBreaker struct {
	mu sync.Mutex

	name   string
	config Config

	state          State
	failureCount   int
	successCount   int
	inFlightProbes int
	lastTransition time.Time

	now func() time.Time // injectable clock for tests
}

// NewCircuitBreaker builds a closed breaker for the named dependency.
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = DefaultConfig().MaxProbes
	}
	return &CircuitBreaker{
		name:           name,
		config:         config,
		state:          StateClosed,
		lastTransition: time.Now(),
		now:            time.Now,
	}
}

// Call runs fn under the breaker. While open it fails fast with ErrCircuitOpen
// without invoking fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.release(err == nil)
	return err
}

// IsOpen reports whether the breaker currently rejects calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state == StateOpen
}

// Snapshot returns the current state, counters and remaining cooldown.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()

	var retry time.Duration
	if cb.state == StateOpen {
		retry = cb.config.Cooldown - cb.now().Sub(cb.lastTransition)
		if retry < 0 {
			retry = 0
		}
	}
	return Snapshot{
		Name:           cb.name,
		State:          cb.state,
		FailureCount:   cb.failureCount,
		SuccessCount:   cb.successCount,
		TimeUntilRetry: retry,
	}
}

// acquire admits a call or rejects it based on state.
func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpenLocked()

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.inFlightProbes >= cb.config.MaxProbes {
			return fmt.Errorf("%w: %s (probe limit reached)", ErrCircuitOpen, cb.name)
		}
		cb.inFlightProbes++
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	}
}

// release records the outcome of an admitted call.
func (cb *CircuitBreaker) release(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if success {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if cb.inFlightProbes > 0 {
			cb.inFlightProbes--
		}
		if !success {
			// Any probe failure reopens immediately.
			cb.transitionLocked(StateOpen)
			return
		}
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	case StateOpen:
		// A straggler finishing after the breaker opened; nothing to record.
	}
}

// maybeHalfOpenLocked applies the time-triggered open -> half-open transition.
func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastTransition) >= cb.config.Cooldown {
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) transitionLocked(next State) {
	cb.state = next
	cb.lastTransition = cb.now()
	cb.inFlightProbes = 0
	switch next {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
	case StateOpen:
		cb.successCount = 0
	case StateHalfOpen:
		cb.successCount = 0
	}
}
