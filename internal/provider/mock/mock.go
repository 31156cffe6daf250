// Package mock is an offline provider that serves ten well-known coins with
// a random-walk history.
package mock

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"coinpulse/internal/provider"
)

type coin struct {
	id, name, symbol string
	base             float64
}

var coins = []coin{
	{"btc", "Bitcoin", "BTC", 67000},
	{"eth", "Ethereum", "ETH", 3400},
	{"bnb", "Binance Coin", "BNB", 580},
	{"sol", "Solana", "SOL", 145},
	{"xrp", "Ripple", "XRP", 0.52},
	{"ada", "Cardano", "ADA", 0.45},
	{"doge", "Dogecoin", "DOGE", 0.15},
	{"dot", "Polkadot", "DOT", 6.8},
	{"matic", "Polygon", "MATIC", 0.85},
	{"link", "Chainlink", "LINK", 14.5},
}

// Provider generates its snapshot once and serves it on every fetch.
type Provider struct {
	latency time.Duration

	once sync.Once
	snap provider.Snapshot
	rnd  *rand.Rand
}

// Option configures the mock provider.
type Option func(*Provider)

// WithSeed makes the generated walk deterministic.
func WithSeed(seed uint64) Option {
	return func(p *Provider) { p.rnd = rand.New(rand.NewPCG(seed, ^seed)) }
}

// WithLatency simulates a network round trip.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.rnd == nil {
		seed := uint64(time.Now().UnixNano())
		p.rnd = rand.New(rand.NewPCG(seed, ^seed))
	}
	return p
}

func (p *Provider) Name() string { return "Mock" }

func (p *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	if p.latency > 0 {
		t := time.NewTimer(p.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	p.once.Do(func() {
		p.snap = make(provider.Snapshot, 0, len(coins))
		for _, c := range coins {
			p.snap = append(p.snap, p.build(c))
		}
	})
	return p.snap.Clone(), nil
}

func (p *Provider) build(c coin) provider.Asset {
	hist := make([]float64, provider.HistoryLength)
	cur := c.base * p.uniform(0.9, 1.1)
	for i := range hist {
		hist[i] = cur
		cur *= p.uniform(0.95, 1.05)
	}
	first, last := hist[0], hist[len(hist)-1]
	return provider.Asset{
		ID:               c.id,
		Name:             c.name,
		Symbol:           c.symbol,
		Price:            last,
		ChangePercent24h: (last - first) / first * 100,
		PriceHistory:     hist,
	}
}

func (p *Provider) uniform(lo, hi float64) float64 {
	return lo + p.rnd.Float64()*(hi-lo)
}
