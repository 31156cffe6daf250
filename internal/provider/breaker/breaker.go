// Package breaker stops hammering a provider that keeps failing.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"coinpulse/internal/provider"
)

// Settings tunes the breaker. Zero values fall back to defaults.
type Settings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// StateFunc observes state transitions, e.g. for metrics.
type StateFunc func(name string, from, to gobreaker.State)

// Provider wraps a provider with a circuit breaker. While open, Fetch fails
// fast with gobreaker.ErrOpenState.
type Provider struct {
	p  provider.Provider
	cb *gobreaker.CircuitBreaker[provider.Snapshot]
}

func New(p provider.Provider, s Settings, log *zap.Logger, onState StateFunc) *Provider {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = time.Minute
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	threshold := s.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[provider.Snapshot](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is not an upstream failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if onState != nil {
				onState(name, from, to)
			}
		},
	})
	return &Provider{p: p, cb: cb}
}

func (b *Provider) Name() string { return b.p.Name() }

func (b *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	return b.cb.Execute(func() (provider.Snapshot, error) {
		return b.p.Fetch(ctx)
	})
}

// State reports the current breaker state.
func (b *Provider) State() gobreaker.State { return b.cb.State() }
