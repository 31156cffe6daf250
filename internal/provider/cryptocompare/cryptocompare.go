package cryptocompare

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

const DefaultBaseURL = "https://min-api.cryptocompare.com/data"

// DefaultSymbols are the tickers tracked when none are configured.
var DefaultSymbols = []string{"BTC", "ETH", "USDT", "BNB", "SOL", "XRP", "USDC", "ADA", "DOGE", "TRX"}

// Names maps tickers to display names; the endpoint only returns symbols.
var Names = map[string]string{
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
	"USDT": "Tether",
	"BNB":  "Binance Coin",
	"SOL":  "Solana",
	"XRP":  "Ripple",
	"USDC": "USD Coin",
	"ADA":  "Cardano",
	"DOGE": "Dogecoin",
	"TRX":  "Tron",
}

// ErrMissingData is returned when the payload has no RAW section.
var ErrMissingData = errors.New("cryptocompare: response has no RAW section")

// Config controls the CryptoCompare adapter.
type Config struct {
	Name     string
	BaseURL  string
	Symbols  []string
	Currency string
	APIKey   string // optional; sent as the api_key query parameter
	Logger   *zap.Logger
}

// Provider reads the pricemultifull endpoint. Output follows the order of
// the configured symbols, not the map order of the payload.
type Provider struct {
	cfg    Config
	client *httpx.Client
	hist   provider.Historian
}

func New(cfg Config, hc *httpx.Client, h provider.Historian) *Provider {
	if cfg.Name == "" {
		cfg.Name = "CryptoCompare"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols
	}
	syms := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s = provider.NormalizeSymbol(s); s != "" {
			syms = append(syms, s)
		}
	}
	cfg.Symbols = syms
	cfg.Currency = provider.NormalizeSymbol(cfg.Currency)
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, client: hc, hist: h}
}

func (p *Provider) Name() string { return p.cfg.Name }

type multiResponse struct {
	Raw map[string]map[string]quote `json:"RAW"`
}

type quote struct {
	Price           *float64 `json:"PRICE"`
	ChangePct24Hour *float64 `json:"CHANGEPCT24HOUR"`
	FromSymbol      string   `json:"FROMSYMBOL"`
}

func (p *Provider) Fetch(ctx context.Context) (provider.Snapshot, error) {
	q := url.Values{}
	q.Set("fsyms", strings.Join(p.cfg.Symbols, ","))
	q.Set("tsyms", p.cfg.Currency)
	if p.cfg.APIKey != "" {
		q.Set("api_key", p.cfg.APIKey)
	}
	u := fmt.Sprintf("%s/pricemultifull?%s", p.cfg.BaseURL, q.Encode())

	var resp multiResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("cryptocompare: %w", err)
	}
	if resp.Raw == nil {
		return nil, ErrMissingData
	}

	out := make(provider.Snapshot, 0, len(p.cfg.Symbols))
	for _, sym := range p.cfg.Symbols {
		byCurrency, ok := resp.Raw[sym]
		if !ok {
			p.cfg.Logger.Debug("symbol missing from payload", zap.String("provider", p.cfg.Name), zap.String("symbol", sym))
			continue
		}
		qt, ok := byCurrency[p.cfg.Currency]
		if !ok {
			continue
		}
		symbol := qt.FromSymbol
		if symbol == "" {
			symbol = sym
		}
		symbol = provider.NormalizeSymbol(symbol)
		name, ok := Names[symbol]
		if !ok {
			name = symbol
		}
		asset, ok := provider.Normalize(provider.Record{
			ID:            strings.ToLower(symbol),
			Symbol:        symbol,
			Name:          name,
			Price:         provider.Deref(qt.Price),
			ChangePercent: provider.Deref(qt.ChangePct24Hour),
		}, p.hist)
		if !ok {
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}
