// Package history synthesizes a short price history for providers that only
// report the current price and the 24h change.
package history

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// Points is the length of every synthesized history.
	Points = 30

	minDivisor = 0.01
	jitterLow  = 0.98
	jitterHigh = 1.02
)

// Synthesizer interpolates from the implied price 24h ago to the current
// price and applies a small multiplicative jitter to every point.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSeed makes the jitter sequence deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Synthesizer) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand sets the random source directly.
func WithRand(r *rand.Rand) Option {
	return func(s *Synthesizer) {
		if r != nil {
			s.rnd = r
		}
	}
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		seed := uint64(time.Now().UnixNano())
		s.rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return s
}

// StartPrice returns the price implied 24h ago. The divisor magnitude is
// floored at 0.01 so a -100% change stays finite.
func StartPrice(price, changePercent24h float64) float64 {
	div := 1 + changePercent24h/100
	if math.Abs(div) < minDivisor {
		div = math.Copysign(minDivisor, div)
	}
	return price / div
}

// Synthesize returns Points values, oldest first.
func (s *Synthesizer) Synthesize(price, changePercent24h float64) []float64 {
	start := StartPrice(price, changePercent24h)
	out := make([]float64, Points)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range out {
		frac := float64(i) / float64(Points-1)
		base := start + (price-start)*frac
		jitter := jitterLow + s.rnd.Float64()*(jitterHigh-jitterLow)
		v := base * jitter
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}
	return out
}
