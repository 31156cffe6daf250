package provider

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Historian produces a price history for assets whose provider has none.
type Historian interface {
	Synthesize(price, changePercent24h float64) []float64
}

// Record is the loosely typed form an adapter decodes before normalization.
type Record struct {
	ID            string
	Symbol        string
	Name          string
	Price         float64
	ChangePercent float64
	History       []float64
}

// Normalize maps a decoded record into an Asset. It reports false when the
// record has neither an id nor a symbol.
func Normalize(r Record, h Historian) (Asset, bool) {
	symbol := NormalizeSymbol(r.Symbol)
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = strings.ToLower(symbol)
	}
	if id == "" {
		return Asset{}, false
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = symbol
	}
	if name == "" {
		name = id
	}

	price := ClampPrice(r.Price)
	change := r.ChangePercent
	if math.IsNaN(change) || math.IsInf(change, 0) {
		change = 0
	}

	history := TrimHistory(r.History)
	if history == nil && h != nil {
		history = h.Synthesize(price, change)
	}
	if len(history) == 0 {
		history = []float64{price}
	}

	return Asset{
		ID:               id,
		Name:             name,
		Symbol:           symbol,
		Price:            price,
		ChangePercent24h: change,
		PriceHistory:     history,
	}, true
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParsePrice parses a decimal string. Anything unparsable yields 0.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ParseNullable parses an optional decimal string, nil meaning 0.
func ParseNullable(s *string) float64 {
	if s == nil {
		return 0
	}
	return ParsePrice(*s)
}

// ClampPrice maps negative and non-finite prices to 0.
func ClampPrice(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// TrimHistory keeps the most recent HistoryLength finite points in
// chronological order. Fewer than two usable points means no history.
func TrimHistory(points []float64) []float64 {
	clean := make([]float64, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) < 2 {
		return nil
	}
	if len(clean) > HistoryLength {
		clean = clean[len(clean)-HistoryLength:]
	}
	return clean
}

// Deref returns the value behind p or 0.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
