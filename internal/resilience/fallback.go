package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every provider in a [FallbackGroup] either
// failed or was skipped by its breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig tunes a [FallbackGroup]. The breaker config is applied to
// every provider in the chain, primary and fallbacks alike; the per-provider
// Name is filled in from the names given at registration.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// chainLink pairs one provider with the breaker guarding it.
type chainLink[T any] struct {
	name     string
	provider T
	breaker  *CircuitBreaker
}

// FallbackGroup tries a chain of providers in registration order. Each
// provider sits behind its own [CircuitBreaker]: a provider whose breaker is
// open is skipped immediately rather than waited on, so on a live call the
// failover costs almost nothing once an outage has been noticed.
//
// T is the provider interface shared by the chain, such as an STT or TTS
// provider.
type FallbackGroup[T any] struct {
	mu    sync.RWMutex
	chain []chainLink[T]
	cfg   FallbackConfig
}

// NewFallbackGroup starts a chain with its primary provider. primaryName
// labels the provider in logs and breaker state.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a provider to the end of the chain. It is consulted
// only after everything registered before it has failed or been skipped.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, provider T) {
	bcfg := fg.cfg.CircuitBreaker
	bcfg.Name = name
	fg.mu.Lock()
	fg.chain = append(fg.chain, chainLink[T]{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(bcfg),
	})
	fg.mu.Unlock()
}

// Execute runs fn against providers down the chain until one succeeds.
// Failures feed the per-provider breakers. When the whole chain is
// exhausted the returned error wraps [ErrAllFailed] together with every
// provider's error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	fg.mu.RLock()
	chain := fg.chain
	fg.mu.RUnlock()

	var attempts []error
	for _, link := range chain {
		err := link.breaker.Execute(func() error {
			return fn(link.provider)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider skipped, breaker open", "provider", link.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", link.name,
				"error", err)
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", link.name, err))
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(attempts...))
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value. It is a package function because Go methods cannot introduce their
// own type parameters.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := fg.Execute(func(provider T) error {
		var innerErr error
		result, innerErr = fn(provider)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
