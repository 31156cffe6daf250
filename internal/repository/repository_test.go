package repository_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"coinpulse/internal/config"
	"coinpulse/internal/metrics"
	"coinpulse/internal/provider"
	"coinpulse/internal/provider/providermock"
	"coinpulse/internal/recommend"
	"coinpulse/internal/repository"
	"coinpulse/internal/scheduler"
)

var sample = provider.Snapshot{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: 67000, ChangePercent24h: 2.5},
	{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Price: 3500, ChangePercent24h: -1.2},
}

func newMock(t *testing.T) *providermock.MockProvider {
	t.Helper()
	p := providermock.NewMockProvider(gomock.NewController(t))
	p.EXPECT().Name().Return("Fake").AnyTimes()
	return p
}

type stubGateway struct{ res recommend.Result }

func (g stubGateway) Recommend(context.Context, provider.Asset) recommend.Result { return g.res }

func TestFetchAssetsFailSoft(t *testing.T) {
	t.Parallel()

	// Arrange
	p := newMock(t)
	p.EXPECT().Fetch(gomock.Any()).Return(nil, errors.New("boom"))
	m := metrics.New(prometheus.NewRegistry())
	r := repository.New(p, repository.Options{Metrics: m})

	// Act
	snap := r.FetchAssets(t.Context())

	// Assert
	require.NotNil(t, snap)
	require.Empty(t, snap)
	require.InDelta(t, 1, testutil.ToFloat64(m.FetchTotal.WithLabelValues("Fake", metrics.OutcomeError)), 0)
}

func TestFetchAssetsRecoversPanic(t *testing.T) {
	t.Parallel()

	p := newMock(t)
	p.EXPECT().Fetch(gomock.Any()).DoAndReturn(func(context.Context) (provider.Snapshot, error) {
		panic("adapter bug")
	})
	r := repository.New(p, repository.Options{})

	require.Empty(t, r.FetchAssets(t.Context()))
}

func TestRefreshKeepsPriorSnapshotOnFailure(t *testing.T) {
	t.Parallel()

	// Arrange
	p := newMock(t)
	gomock.InOrder(
		p.EXPECT().Fetch(gomock.Any()).Return(sample, nil),
		p.EXPECT().Fetch(gomock.Any()).Return(nil, errors.New("rate limited")),
	)
	r := repository.New(p, repository.Options{})
	require.Empty(t, r.Current())

	// Act
	first := r.Refresh(t.Context())
	second := r.Refresh(t.Context())

	// Assert
	require.Len(t, first, 2)
	require.Empty(t, second)
	require.Equal(t, sample, r.Current())
	a, ok := r.Find("ethereum")
	require.True(t, ok)
	require.Equal(t, "ETH", a.Symbol)
	_, ok = r.Find("dogecoin")
	require.False(t, ok)
}

func TestSubscribeReceivesCurrentAndUpdates(t *testing.T) {
	t.Parallel()

	// Arrange
	p := newMock(t)
	p.EXPECT().Fetch(gomock.Any()).Return(sample, nil)
	r := repository.New(p, repository.Options{})

	var mu sync.Mutex
	var got []int
	sub := r.Subscribe(func(s provider.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, len(s))
	})
	defer sub.Unsubscribe()

	// Act
	r.Refresh(t.Context())

	// Assert: the empty initial value, then the refresh.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 2}, got)
}

func TestStartPublishesAndDisposeStops(t *testing.T) {
	t.Parallel()

	// Arrange
	p := newMock(t)
	p.EXPECT().Fetch(gomock.Any()).Return(sample, nil).MinTimes(1)
	closed := make(chan struct{})
	r := repository.New(p, repository.Options{Interval: 10 * time.Millisecond})
	r.OnDispose(func() { close(closed) })

	// Act
	h := r.Start(t.Context())
	require.Eventually(t, func() bool { return len(r.Current()) == 2 }, time.Second, time.Millisecond)
	r.Dispose()
	r.Dispose()

	// Assert
	<-h.Done()
	<-closed
	require.Equal(t, scheduler.Idle, r.State())

	h = r.Start(t.Context())
	<-h.Done()
	require.Equal(t, scheduler.Idle, r.State())
}

func TestRecommendDelegatesToGateway(t *testing.T) {
	t.Parallel()

	p := newMock(t)
	want := recommend.Result{Label: recommend.Buy, Detail: "Momentum is strong."}
	r := repository.New(p, repository.Options{Gateway: stubGateway{res: want}})

	require.Equal(t, want, r.Recommend(t.Context(), sample[0]))
	require.Equal(t, want, <-r.RecommendAsync(t.Context(), sample[0]))

	a := repository.Annotate(sample[0], want)
	require.Equal(t, "BUY", a.Recommendation)
	require.Equal(t, "Momentum is strong.", a.RecommendationDetail)
}

func TestDefaultGatewayIsNotConfigured(t *testing.T) {
	t.Parallel()

	r := repository.New(newMock(t), repository.Options{})

	res := r.Recommend(t.Context(), sample[0])
	require.Equal(t, recommend.NotConfigured, res.Label)
	require.NotEmpty(t, res.Detail)
}

func TestRefreshAsync(t *testing.T) {
	t.Parallel()

	p := newMock(t)
	p.EXPECT().Fetch(gomock.Any()).Return(sample, nil)
	r := repository.New(p, repository.Options{})

	require.Len(t, <-r.RefreshAsync(t.Context()), 2)
	require.Len(t, r.Current(), 2)
}

func TestBuildProviderUsesConfiguredSource(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider = config.CoinGecko
	p, err := repository.BuildProvider(cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "CoinGecko", p.Name())

	cfg.Provider = config.Mock
	p, err = repository.BuildProvider(cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "Mock", p.Name())

	cfg.Provider = "binance"
	_, err = repository.BuildProvider(cfg, nil, nil)
	require.Error(t, err)
}

func TestNewFromConfigWithoutKey(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := config.Default()
	cfg.Provider = config.Mock

	// Act
	r, err := repository.NewFromConfig(t.Context(), cfg, config.Credentials{}, nil, nil)

	// Assert
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, r.Interval())
	require.Len(t, r.Refresh(t.Context()), 10)
	require.Equal(t, recommend.NotConfigured, r.Recommend(t.Context(), r.Current()[0]).Label)
}

func TestBuildProviderSpacesManualFetches(t *testing.T) {
	t.Parallel()

	// Arrange: no token bucket or breaker, only the spacing floor.
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":[{"id":"bitcoin","symbol":"BTC","name":"Bitcoin","priceUsd":"67000","changePercent24Hr":"1"}]}`))
	}))
	defer srv.Close()

	const gap = 60 * time.Millisecond
	cfg := config.Default()
	cfg.Provider = config.CoinCap
	cfg.Breaker.Enabled = false
	cfg.Providers.CoinCap.BaseURL = srv.URL
	cfg.Providers.CoinCap.MaxRequestsPerMinute = 0
	cfg.Providers.CoinCap.MinInterval = gap

	p, err := repository.BuildProvider(cfg, nil, nil)
	require.NoError(t, err)
	r := repository.New(p, repository.Options{Interval: time.Hour})

	// Act: a scheduled-style refresh followed at once by a manual one.
	require.Len(t, r.Refresh(t.Context()), 1)
	require.Len(t, r.Refresh(t.Context()), 1)

	// Assert
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hits, 2)
	require.GreaterOrEqual(t, hits[1].Sub(hits[0]), gap)
}
