// Package resilience keeps speech provider outages from cascading into dead
// air on live calls.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a provider once it fails repeatedly. [FallbackGroup] chains
// a primary provider with fallbacks behind per-provider breakers, so a Sarvam
// outage fails over to the configured alternative instead of aborting turns.
//
// All types are safe for concurrent use; several calls may transcribe and
// synthesize through the same group at once.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the reset
	// timeout has elapsed since the last failure.
	StateOpen

	// StateHalfOpen lets a bounded number of trial calls through. All
	// trials succeeding closes the breaker; any trial failing re-opens it.
	StateHalfOpen
)

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

// CircuitBreakerConfig tunes one [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the guarded provider in logs (e.g., "sarvam").
	Name string

	// MaxFailures is how many consecutive failures close-state tolerates
	// before opening. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before trying it again.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax caps the trial calls allowed while half-open. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards one speech provider. A provider that times out or
// errors MaxFailures times in a row is benched for ResetTimeout; during a
// live call that rejection is near-instant, which leaves the fallback chain
// the whole latency budget.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu          sync.Mutex
	state       State
	streak      int
	lastFailure time.Time
	trials      int
	trialFails  int
}

// NewCircuitBreaker builds a breaker, substituting defaults for zero-value
// config fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn when the breaker allows it and feeds the outcome back into
// the state machine. While open it returns [ErrCircuitOpen] without touching
// the provider.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure(trial)
	} else {
		cb.onSuccess(trial)
	}
	return err
}

// admit decides whether the next call may proceed, transitioning open to
// half-open once the reset timeout has passed. It reports whether the call
// counts as a half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trials = 0
		cb.trialFails = 0
		slog.Info("provider breaker trying provider again", "provider", cb.name)

	case StateHalfOpen:
		if cb.trials >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.trials++
		return true, nil
	}
	return false, nil
}

// onFailure runs with cb.mu held.
func (cb *CircuitBreaker) onFailure(trial bool) {
	cb.lastFailure = time.Now()

	if trial {
		cb.trialFails++
		cb.state = StateOpen
		cb.streak = cb.maxFailures
		slog.Warn("provider breaker re-opened, trial call failed", "provider", cb.name)
		return
	}

	cb.streak++
	if cb.streak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("provider breaker opened",
			"provider", cb.name,
			"consecutive_failures", cb.streak)
	}
}

// onSuccess runs with cb.mu held.
func (cb *CircuitBreaker) onSuccess(trial bool) {
	if !trial {
		cb.streak = 0
		return
	}
	if cb.trials-cb.trialFails >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.streak = 0
		cb.trials = 0
		cb.trialFails = 0
		slog.Info("provider breaker closed, trial calls healthy", "provider", cb.name)
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the stored state flips on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters. Intended for
// operator intervention after a provider-side incident is resolved.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.streak = 0
	cb.trials = 0
	cb.trialFails = 0
	slog.Info("provider breaker reset", "provider", cb.name)
}
