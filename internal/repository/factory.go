package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"coinpulse/internal/config"
	"coinpulse/internal/httpx"
	"coinpulse/internal/metrics"
	"coinpulse/internal/provider"
	"coinpulse/internal/provider/breaker"
	"coinpulse/internal/provider/coincap"
	"coinpulse/internal/provider/coingecko"
	"coinpulse/internal/provider/cryptocompare"
	"coinpulse/internal/provider/history"
	"coinpulse/internal/provider/mock"
	"coinpulse/internal/provider/ratelimit"
	"coinpulse/internal/recommend"
)

// BuildProvider assembles the adapter for cfg.Provider wrapped in the
// spacer, the rate limiter and, when enabled, the circuit breaker.
func BuildProvider(cfg config.Config, log *zap.Logger, m *metrics.Metrics) (provider.Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	src, ok := cfg.Source(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	hc := httpx.New(cfg.Server.RequestTimeout)
	hist := history.New()

	var p provider.Provider
	switch cfg.Provider {
	case config.CoinGecko:
		p = coingecko.New(coingecko.Config{BaseURL: src.BaseURL, IDs: src.IDs, Logger: log}, hc, hist)
	case config.CoinCap:
		p = coincap.New(coincap.Config{BaseURL: src.BaseURL, IDs: src.IDs, Logger: log}, hc, hist)
	case config.CryptoCompare:
		p = cryptocompare.New(cryptocompare.Config{
			BaseURL: src.BaseURL,
			Symbols: src.IDs,
			APIKey:  src.APIKey,
			Logger:  log,
		}, hc, hist)
	case config.Mock:
		return mock.New(), nil
	}

	if src.MinInterval > 0 {
		p = &ratelimit.Spacer{P: p, Gap: src.MinInterval}
	}
	p = &ratelimit.Provider{P: p, Limiter: ratelimit.PerMinute(src.MaxRequestsPerMinute, src.Burst)}
	if cfg.Breaker.Enabled {
		p = breaker.New(p, breaker.Settings{
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.Breaker.OpenTimeout,
		}, log, func(name string, _, to gobreaker.State) {
			m.SetBreakerState(name, int(to))
		})
	}
	return p, nil
}

// BuildGateway picks the recommender backend. Missing credentials are not
// an error: the gateway then answers NOT_CONFIGURED.
func BuildGateway(ctx context.Context, rc config.Recommender, creds config.Credentials, log *zap.Logger, m *metrics.Metrics) (recommend.Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tmpl, err := recommend.LoadTemplate(rc.PromptFile)
	if err != nil {
		log.Warn("prompt template unreadable, using default", zap.Error(err))
	}
	opts := []recommend.Option{
		recommend.WithTemplate(tmpl),
		recommend.WithTimeout(rc.Timeout),
		recommend.WithCache(recommend.NewCache(rc.CacheTTL, rc.CacheMaxItems)),
		recommend.WithLogger(log),
		recommend.WithObserver(func(l recommend.Label) { m.ObserveRecommendation(string(l)) }),
	}

	switch rc.Backend {
	case config.BackendMock:
		return recommend.NewRandom(0), nil
	case config.BackendNone:
		return recommend.NewLLM(config.Credentials{}, nil, opts...), nil
	case config.BackendGemini:
		if !creds.Configured() {
			return recommend.NewLLM(creds, nil, opts...), nil
		}
		g, err := recommend.NewGemini(ctx, creds.Key(), rc.Model)
		if err != nil {
			return nil, err
		}
		return recommend.NewLLM(creds, g, opts...), nil
	default:
		c := recommend.NewOpenAI(creds.Key(),
			recommend.WithBaseURL(rc.Endpoint),
			recommend.WithModel(rc.Model),
			recommend.WithHTTPClient(&http.Client{Timeout: rc.Timeout}),
		)
		return recommend.NewLLM(creds, c, opts...), nil
	}
}

// NewFromConfig wires a Repository from configuration.
func NewFromConfig(ctx context.Context, cfg config.Config, creds config.Credentials, log *zap.Logger, m *metrics.Metrics) (*Repository, error) {
	p, err := BuildProvider(cfg, log, m)
	if err != nil {
		return nil, err
	}
	gw, err := BuildGateway(ctx, cfg.Recommender, creds, log, m)
	if err != nil {
		return nil, fmt.Errorf("recommender: %w", err)
	}
	return New(p, Options{
		Interval: cfg.Active().RefreshInterval,
		Gateway:  gw,
		Logger:   log,
		Metrics:  m,
	}), nil
}
