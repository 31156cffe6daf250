package sink_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"coinpulse/internal/provider"
	"coinpulse/internal/sink"
)

type fakePublisher struct {
	subjects []string
	bodies   [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	return f.err
}

func TestObservePublishesEnvelope(t *testing.T) {
	t.Parallel()

	// Arrange
	pub := &fakePublisher{}
	s := sink.New(pub, "coinpulse.snapshot", "CoinCap", nil)

	// Act
	s.Observe(provider.Snapshot{{ID: "bitcoin", Symbol: "BTC", Price: 1, PriceHistory: []float64{1, 1}}})

	// Assert
	require.Equal(t, []string{"coinpulse.snapshot"}, pub.subjects)
	var env sink.Envelope
	require.NoError(t, json.Unmarshal(pub.bodies[0], &env))
	require.Equal(t, "CoinCap", env.Provider)
	require.Len(t, env.Assets, 1)
	require.Equal(t, "BTC", env.Assets[0].Symbol)
	require.False(t, env.PublishedAt.IsZero())
}

func TestObserveSkipsEmpty(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	sink.New(pub, "s", "p", nil).Observe(provider.Snapshot{})
	require.Empty(t, pub.subjects)
}

func TestObserveLogsPublishError(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	pub := &fakePublisher{err: errors.New("nats: connection closed")}

	s := sink.New(pub, "s", "p", zap.New(core))
	s.Observe(provider.Snapshot{{ID: "x"}})
	s.Close()

	require.Equal(t, 1, logs.Len())
}
