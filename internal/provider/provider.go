package provider

import (
	"context"
	"slices"
)

// HistoryLength is the number of points kept per asset for charting.
const HistoryLength = 30

// Asset is the normalized shape returned by all providers.
type Asset struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Symbol               string    `json:"symbol"`
	Price                float64   `json:"price"`
	ChangePercent24h     float64   `json:"change_percent_24h"`
	PriceHistory         []float64 `json:"price_history"`
	Recommendation       string    `json:"recommendation,omitempty"`
	RecommendationDetail string    `json:"recommendation_detail,omitempty"`
}

// Snapshot is the ordered asset list produced by one successful fetch.
type Snapshot []Asset

// Clone returns a deep copy so callers can't mutate shared history slices.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, a := range s {
		a.PriceHistory = slices.Clone(a.PriceHistory)
		out[i] = a
	}
	return out
}

// Find returns the asset with the given id.
func (s Snapshot) Find(id string) (Asset, bool) {
	for _, a := range s {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// Provider fetches the tracked instruments from one market-data API.
//
//go:generate mockgen -package=providermock -destination=providermock/provider.go -source=provider.go Provider
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Snapshot, error)
}
