package recommend_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"coinpulse/internal/config"
	"coinpulse/internal/provider"
	"coinpulse/internal/recommend"
)

var btc = provider.Asset{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: 67000, ChangePercent24h: 2}

func TestRecommendNotConfigured(t *testing.T) {
	t.Parallel()

	// Arrange: the completer must never be reached.
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)

	cases := []config.Credentials{
		{},
		config.NewCredentials(""),
		config.NewCredentials(config.PlaceholderKey),
	}
	for _, creds := range cases {
		// Act
		res := recommend.NewLLM(creds, completer).Recommend(t.Context(), btc)

		// Assert
		require.Equal(t, recommend.NotConfigured, res.Label)
		require.NotEmpty(t, res.Detail)
	}

	res := recommend.NewLLM(config.NewCredentials("sk-real"), nil).Recommend(t.Context(), btc)
	require.Equal(t, recommend.NotConfigured, res.Label)
}

func TestRecommendBuy(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	completer.EXPECT().
		Complete(gomock.Any(), recommend.SystemPrompt, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, prompt string) (string, error) {
			require.Contains(t, prompt, "Bitcoin (BTC)")
			return "RECOMMENDATION: BUY\nDETAILS: Momentum is strong.", nil
		})

	var labels []recommend.Label
	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer,
		recommend.WithObserver(func(l recommend.Label) { labels = append(labels, l) }))

	// Act
	res := g.Recommend(t.Context(), btc)

	// Assert
	require.Equal(t, recommend.Result{Label: recommend.Buy, Detail: "Momentum is strong."}, res)
	require.Equal(t, []recommend.Label{recommend.Buy}, labels)
}

func TestRecommendBackendErrorIsReported(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("quota exceeded"))

	core, logs := observer.New(zap.WarnLevel)
	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer, recommend.WithLogger(zap.New(core)))

	// Act
	res := g.Recommend(t.Context(), btc)

	// Assert
	require.Equal(t, recommend.Error, res.Label)
	require.Contains(t, res.Detail, "quota exceeded")
	require.Equal(t, 1, logs.FilterMessage("recommendation failed").Len())
}

func TestRecommendPanicIsReported(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (string, error) { panic("nil map") })

	res := recommend.NewLLM(config.NewCredentials("sk-real"), completer).Recommend(t.Context(), btc)

	require.Equal(t, recommend.Error, res.Label)
	require.Contains(t, res.Detail, "nil map")
}

func TestRecommendTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer, recommend.WithTimeout(10*time.Millisecond))
	res := g.Recommend(t.Context(), btc)

	require.Equal(t, recommend.Error, res.Label)
	require.Contains(t, res.Detail, "deadline exceeded")
}

func TestRecommendUsesCache(t *testing.T) {
	t.Parallel()

	// Arrange: only one upstream call is allowed.
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("Hold steady", nil).Times(1)

	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer,
		recommend.WithCache(recommend.NewCache(time.Hour, 10)))

	// Act
	first := g.Recommend(t.Context(), btc)
	second := g.Recommend(t.Context(), btc)

	// Assert
	require.Equal(t, recommend.DontTouch, first.Label)
	require.Equal(t, first, second)
}

func TestRecommendErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	gomock.InOrder(
		completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("timeout")),
		completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("BUY", nil),
	)

	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer,
		recommend.WithCache(recommend.NewCache(time.Hour, 10)))

	require.Equal(t, recommend.Error, g.Recommend(t.Context(), btc).Label)
	require.Equal(t, recommend.Buy, g.Recommend(t.Context(), btc).Label)
}

func TestRecommendConcurrentCallsShareUpstream(t *testing.T) {
	t.Parallel()

	// Arrange: the first call blocks until every caller has arrived.
	ctrl := gomock.NewController(t)
	completer := NewMockCompleter(ctrl)
	release := make(chan struct{})
	completer.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (string, error) {
			<-release
			return "RECOMMENDATION: BUY", nil
		}).
		MinTimes(1).MaxTimes(5)

	g := recommend.NewLLM(config.NewCredentials("sk-real"), completer)

	// Act
	var wg sync.WaitGroup
	results := make([]recommend.Result, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = g.Recommend(context.Background(), btc)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Assert
	for _, r := range results {
		require.Equal(t, recommend.Buy, r.Label)
	}
}

func TestRandomGateway(t *testing.T) {
	t.Parallel()

	g := recommend.NewRandom(7)
	seen := map[recommend.Label]bool{}
	for range 50 {
		res := g.Recommend(t.Context(), btc)
		require.NotEmpty(t, res.Detail)
		seen[res.Label] = true
	}
	require.True(t, seen[recommend.Buy])
	require.True(t, seen[recommend.DontTouch])

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.Equal(t, recommend.Error, g.Recommend(ctx, btc).Label)
}
