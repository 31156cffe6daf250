package coincap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"coinpulse/internal/httpx"
	"coinpulse/internal/provider"
)

const DefaultBaseURL = "https://api.coincap.io/v2"

// DefaultIDs are the CoinCap slugs tracked when none are configured.
var DefaultIDs = []string{
	"bitcoin", "ethereum", "tether", "binance-coin", "solana",
	"ripple", "usd-coin", "cardano", "dogecoin", "tron",
}

// ErrMissingData is returned when the payload has no data array.
var ErrMissingData = errors.New("coincap: response has no data")

// Config controls the CoinCap adapter.
type Config struct {
	Name    string
	BaseURL string
	IDs     []string
	Logger  *zap.Logger
}

// Provider reads the CoinCap assets endpoint. CoinCap reports no history so
// every asset gets a synthesized one.
type Provider struct {
	cfg    Config
	client *httpx.Client
	hist   provider.Historian
}

func New(cfg Config, hc *httpx.Client, h provider.Historian) *Provider {
	if cfg.Name == "" {
		cfg.Name = "CoinCap"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.IDs) == 0 {
		cfg.IDs = DefaultIDs
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: hc, hist: h}
}

func (p *Provider) Name() string { return p.cfg.Name }

type assetsResponse struct {
	Data *[]asset `json:"data"`
}

type asset struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	PriceUSD          *string `json:"priceUsd"`
	ChangePercent24Hr *string `json:"changePercent24Hr"`
}

func (p *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(p.cfg.IDs, ","))
	u := fmt.Sprintf("%s/assets?%s", p.cfg.BaseURL, q.Encode())

	var resp assetsResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("coincap: %w", err)
	}
	if resp.Data == nil {
		return nil, ErrMissingData
	}

	out := make(provider.Snapshot, 0, len(*resp.Data))
	for _, a := range *resp.Data {
		rec := provider.Record{
			ID:            a.ID,
			Symbol:        a.Symbol,
			Name:          a.Name,
			Price:         provider.ParseNullable(a.PriceUSD),
			ChangePercent: provider.ParseNullable(a.ChangePercent24Hr),
		}
		asset, ok := provider.Normalize(rec, p.hist)
		if !ok {
			p.cfg.Logger.Warn("skipping unidentifiable entry", zap.String("provider", p.cfg.Name), zap.String("name", a.Name))
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}
