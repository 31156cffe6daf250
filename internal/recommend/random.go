package recommend

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"coinpulse/internal/provider"
)

// Random is an offline Gateway that flips a coin. It pairs with the mock
// provider for demos without an API key.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{rnd: rand.New(rand.NewPCG(seed, seed<<1))}
}

func (r *Random) Recommend(ctx context.Context, a provider.Asset) Result {
	if err := ctx.Err(); err != nil {
		return Result{Label: Error, Detail: "Recommendation failed: " + err.Error()}
	}
	r.mu.Lock()
	buy := r.rnd.IntN(2) == 0
	r.mu.Unlock()
	if buy {
		return Result{Label: Buy, Detail: "Mock analysis suggests positive momentum with favorable technical indicators."}
	}
	return Result{Label: DontTouch, Detail: "Mock analysis advises caution given current market conditions and volatility."}
}
