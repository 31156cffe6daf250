// Package repository ties one provider, the refresh loop, the snapshot
// store and the recommender together behind the Feed interface.
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"coinpulse/internal/config"
	"coinpulse/internal/metrics"
	"coinpulse/internal/provider"
	"coinpulse/internal/recommend"
	"coinpulse/internal/scheduler"
	"coinpulse/internal/store"
	"coinpulse/internal/trace"
)

// Feed is the capability set the outer surfaces consume.
type Feed interface {
	// Provider names the configured data source.
	Provider() string
	// FetchAssets runs one fetch. Failures yield an empty snapshot.
	FetchAssets(ctx context.Context) provider.Snapshot
	// Refresh fetches and publishes a non-empty result.
	Refresh(ctx context.Context) provider.Snapshot
	Current() provider.Snapshot
	Find(id string) (provider.Asset, bool)
	Subscribe(o store.Observer) *store.Subscription
	Recommend(ctx context.Context, a provider.Asset) recommend.Result
	Start(ctx context.Context) *scheduler.Handle
	Stop()
	Dispose()
}

// Options configures a Repository. Zero values get defaults.
type Options struct {
	Interval time.Duration
	Store    *store.Store
	Gateway  recommend.Gateway
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

type Repository struct {
	p       provider.Provider
	store   *store.Store
	sched   *scheduler.Scheduler
	gw      recommend.Gateway
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	disposed bool
	closers  []func()
}

var _ Feed = (*Repository)(nil)

func New(p provider.Provider, opts Options) *Repository {
	if opts.Store == nil {
		opts.Store = store.New(store.WithSubscriberHook(opts.Metrics.SetSubscribers))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gateway == nil {
		opts.Gateway = recommend.NewLLM(config.Credentials{}, nil)
	}
	r := &Repository{
		p:       p,
		store:   opts.Store,
		gw:      opts.Gateway,
		log:     opts.Logger.With(zap.String("provider", p.Name())),
		metrics: opts.Metrics,
	}
	r.sched = scheduler.New(opts.Interval, r.FetchAssets, r.publish, r.log)
	return r
}

func (r *Repository) Provider() string { return r.p.Name() }

// Interval is the refresh period of the background loop.
func (r *Repository) Interval() time.Duration { return r.sched.Interval() }

func (r *Repository) FetchAssets(ctx context.Context) (snap provider.Snapshot) {
	ctx, span := trace.StartSpan(ctx, "provider.fetch")
	span.SetAttributes(attribute.String("provider", r.p.Name()))
	defer span.End()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("fetch panicked", zap.Any("panic", rec))
			r.metrics.ObserveFetch(r.p.Name(), metrics.OutcomeError, time.Since(start))
			span.SetStatus(codes.Error, fmt.Sprint(rec))
			snap = provider.Snapshot{}
		}
	}()

	snap, err := r.p.Fetch(ctx)
	took := time.Since(start)
	if err != nil {
		r.log.Warn("fetch failed", zap.Error(err), zap.Duration("took", took))
		r.metrics.ObserveFetch(r.p.Name(), metrics.OutcomeError, took)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return provider.Snapshot{}
	}
	if len(snap) == 0 {
		r.log.Info("fetch returned no assets", zap.Duration("took", took))
		r.metrics.ObserveFetch(r.p.Name(), metrics.OutcomeEmpty, took)
		return provider.Snapshot{}
	}
	r.log.Debug("fetch succeeded", zap.Int("assets", len(snap)), zap.Duration("took", took))
	r.metrics.ObserveFetch(r.p.Name(), metrics.OutcomeSuccess, took)
	span.SetAttributes(attribute.Int("assets", len(snap)))
	return snap
}

func (r *Repository) Refresh(ctx context.Context) provider.Snapshot {
	snap := r.FetchAssets(ctx)
	if len(snap) > 0 {
		r.publish(snap)
	}
	return snap
}

// RefreshAsync runs Refresh in the background and delivers its result.
func (r *Repository) RefreshAsync(ctx context.Context) <-chan provider.Snapshot {
	out := make(chan provider.Snapshot, 1)
	go func() { out <- r.Refresh(ctx) }()
	return out
}

func (r *Repository) publish(snap provider.Snapshot) {
	r.store.Publish(snap)
	r.metrics.SetAssets(len(snap))
}

func (r *Repository) Current() provider.Snapshot { return r.store.Current() }

func (r *Repository) Find(id string) (provider.Asset, bool) {
	return r.store.Current().Find(id)
}

func (r *Repository) Subscribe(o store.Observer) *store.Subscription {
	return r.store.Subscribe(o)
}

func (r *Repository) Recommend(ctx context.Context, a provider.Asset) recommend.Result {
	return r.gw.Recommend(ctx, a)
}

// RecommendAsync runs Recommend in the background and delivers its result.
func (r *Repository) RecommendAsync(ctx context.Context, a provider.Asset) <-chan recommend.Result {
	out := make(chan recommend.Result, 1)
	go func() { out <- r.Recommend(ctx, a) }()
	return out
}

// Start launches the refresh loop. After Dispose the returned handle is
// already stopped.
func (r *Repository) Start(ctx context.Context) *scheduler.Handle {
	r.mu.Lock()
	disposed := r.disposed
	r.mu.Unlock()
	if disposed {
		dead, cancel := context.WithCancel(ctx)
		cancel()
		return r.sched.Start(dead)
	}
	return r.sched.Start(ctx)
}

func (r *Repository) Stop() { r.sched.Stop() }

// State reports whether the refresh loop is running.
func (r *Repository) State() scheduler.State { return r.sched.State() }

// OnDispose registers cleanup to run once on Dispose.
func (r *Repository) OnDispose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, fn)
}

// Dispose stops the loop and runs registered cleanup. Calling it again is a no-op.
func (r *Repository) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	r.sched.Stop()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Annotate copies a recommendation onto an asset for display.
func Annotate(a provider.Asset, res recommend.Result) provider.Asset {
	a.Recommendation = string(res.Label)
	a.RecommendationDetail = res.Detail
	return a
}
