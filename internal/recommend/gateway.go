package recommend

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"coinpulse/internal/config"
	"coinpulse/internal/provider"
	"coinpulse/internal/trace"
)

const notConfiguredDetail = "Recommendation service is not configured. Add an API key to the credentials file or the environment."

// LLM is the Gateway backed by a language model. Concurrent requests for
// the same asset share one upstream call.
type LLM struct {
	creds     config.Credentials
	completer Completer
	template  string
	timeout   time.Duration
	cache     *Cache
	log       *zap.Logger
	observe   func(Label)

	sf singleflight.Group
}

// Option configures an LLM gateway.
type Option func(*LLM)

// WithTemplate overrides the user prompt template.
func WithTemplate(t string) Option {
	return func(g *LLM) { g.template = t }
}

// WithTimeout bounds each upstream call.
func WithTimeout(d time.Duration) Option {
	return func(g *LLM) { g.timeout = d }
}

// WithCache reuses definitive answers for the cache TTL.
func WithCache(c *Cache) Option {
	return func(g *LLM) { g.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *LLM) {
		if l != nil {
			g.log = l
		}
	}
}

// WithObserver is told the label of every result, e.g. for metrics.
func WithObserver(fn func(Label)) Option {
	return func(g *LLM) { g.observe = fn }
}

// NewLLM builds a gateway. A nil completer or unconfigured credentials make
// every call return NotConfigured.
func NewLLM(creds config.Credentials, c Completer, opts ...Option) *LLM {
	g := &LLM{
		creds:     creds,
		completer: c,
		template:  DefaultTemplate,
		timeout:   30 * time.Second,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether requests will reach a model.
func (g *LLM) Configured() bool {
	return g.completer != nil && g.creds.Configured()
}

func (g *LLM) Recommend(ctx context.Context, a provider.Asset) Result {
	res := g.recommend(ctx, a)
	if g.observe != nil {
		g.observe(res.Label)
	}
	return res
}

func (g *LLM) recommend(ctx context.Context, a provider.Asset) Result {
	if !g.Configured() {
		return Result{Label: NotConfigured, Detail: notConfiguredDetail}
	}
	if r, ok := g.cache.Get(a.ID); ok {
		return r
	}

	v, _, shared := g.sf.Do(a.ID, func() (any, error) {
		return g.ask(ctx, a), nil
	})
	res := v.(Result)
	if shared {
		g.log.Debug("recommendation shared with concurrent caller", zap.String("asset", a.ID))
	}
	return res
}

func (g *LLM) ask(ctx context.Context, a provider.Asset) (res Result) {
	ctx, span := trace.StartSpan(ctx, "recommend.ask")
	span.SetAttributes(attribute.String("asset.id", a.ID), attribute.String("asset.symbol", a.Symbol))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("recommendation panicked", zap.String("asset", a.ID), zap.Any("panic", rec))
			res = Result{Label: Error, Detail: fmt.Sprintf("Recommendation failed: %v", rec)}
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.completer.Complete(ctx, SystemPrompt, BuildPrompt(g.template, a))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Warn("recommendation failed", zap.String("asset", a.ID), zap.Error(err))
		return Result{Label: Error, Detail: fmt.Sprintf("Recommendation failed: %v", err)}
	}

	res = Parse(reply)
	span.SetAttributes(attribute.String("recommendation.label", string(res.Label)))
	g.log.Info("recommendation received",
		zap.String("asset", a.ID),
		zap.String("label", string(res.Label)),
		zap.Duration("took", time.Since(start)))
	g.cache.Put(a.ID, res)
	return res
}
