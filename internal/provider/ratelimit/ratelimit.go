package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"coinpulse/internal/provider"
)

// Provider gates calls to the wrapped provider with a token bucket.
type Provider struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// PerMinute builds a limiter allowing rpm requests per minute with the given burst.
func PerMinute(rpm, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

func (l *Provider) Name() string { return l.P.Name() }

func (l *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return l.P.Fetch(ctx)
}

// Spacer keeps at least Gap between the starts of consecutive fetches,
// whoever triggers them. Callers reserve their slot under the lock, so
// concurrent callers queue one Gap apart. A caller that gives up while
// waiting still uses its slot.
type Spacer struct {
	P   provider.Provider
	Gap time.Duration

	mu   sync.Mutex
	next time.Time
}

func (s *Spacer) Name() string { return s.P.Name() }

func (s *Spacer) Fetch(ctx context.Context) (provider.Snapshot, error) {
	if wait := s.reserve(); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return s.P.Fetch(ctx)
}

func (s *Spacer) reserve() time.Duration {
	if s.Gap <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	slot := s.next
	if slot.Before(now) {
		slot = now
	}
	s.next = slot.Add(s.Gap)
	return slot.Sub(now)
}
