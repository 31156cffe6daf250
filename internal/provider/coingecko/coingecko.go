package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"coinpulse/internal/httpx"
	"coinpulse/internal/provider"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// DefaultIDs are the CoinGecko coin ids tracked when none are configured.
var DefaultIDs = []string{
	"bitcoin", "ethereum", "tether", "binancecoin", "solana",
	"ripple", "usd-coin", "cardano", "dogecoin", "tron",
}

// Config controls the CoinGecko adapter.
type Config struct {
	Name       string
	BaseURL    string
	IDs        []string
	VsCurrency string
	Logger     *zap.Logger
}

// Provider reads the markets endpoint with the 7d sparkline, which is used
// as native history when it has enough points.
type Provider struct {
	cfg    Config
	client *httpx.Client
	hist   provider.Historian
}

func New(cfg Config, hc *httpx.Client, h provider.Historian) *Provider {
	if cfg.Name == "" {
		cfg.Name = "CoinGecko"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.IDs) == 0 {
		cfg.IDs = DefaultIDs
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: hc, hist: h}
}

func (p *Provider) Name() string { return p.cfg.Name }

type market struct {
	ID                       string     `json:"id"`
	Symbol                   string     `json:"symbol"`
	Name                     string     `json:"name"`
	CurrentPrice             *float64   `json:"current_price"`
	PriceChangePercentage24h *float64   `json:"price_change_percentage_24h"`
	Sparkline                *sparkline `json:"sparkline_in_7d"`
}

type sparkline struct {
	Price []*float64 `json:"price"`
}

// points drops null samples so gaps don't read as a zero price.
func (s *sparkline) points() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, 0, len(s.Price))
	for _, p := range s.Price {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (p *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	q := url.Values{}
	q.Set("vs_currency", p.cfg.VsCurrency)
	q.Set("ids", strings.Join(p.cfg.IDs, ","))
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(len(p.cfg.IDs)))
	q.Set("page", "1")
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "24h")
	u := fmt.Sprintf("%s/coins/markets?%s", p.cfg.BaseURL, q.Encode())

	var markets []market
	if err := p.client.GetJSON(ctx, u, &markets); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	out := make(provider.Snapshot, 0, len(markets))
	for _, m := range markets {
		rec := provider.Record{
			ID:            m.ID,
			Symbol:        m.Symbol,
			Name:          m.Name,
			Price:         provider.Deref(m.CurrentPrice),
			ChangePercent: provider.Deref(m.PriceChangePercentage24h),
			History:       m.Sparkline.points(),
		}
		asset, ok := provider.Normalize(rec, p.hist)
		if !ok {
			p.cfg.Logger.Warn("skipping unidentifiable entry", zap.String("provider", p.cfg.Name), zap.String("name", m.Name))
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}
