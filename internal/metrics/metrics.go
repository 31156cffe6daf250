// Package metrics exposes the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

type Metrics struct {
	FetchTotal      *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	Assets          prometheus.Gauge
	Recommendations *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	StreamClients   prometheus.Gauge
	StreamDropped   prometheus.Counter
	BreakerState    *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_fetch_total",
			Help: "Provider fetches, partitioned by outcome",
		}, []string{"provider", "outcome"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinpulse_fetch_duration_seconds",
			Help:    "Provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		Assets: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_assets",
			Help: "Assets in the current snapshot",
		}),
		Recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_recommendations_total",
			Help: "Recommendation results by label",
		}, []string{"label"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_subscribers",
			Help: "Active snapshot subscribers",
		}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_stream_clients",
			Help: "Connected websocket clients",
		}),
		StreamDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "coinpulse_stream_dropped_total",
			Help: "Snapshots replaced before a slow client could read them",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinpulse_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),
	}
}

func (m *Metrics) ObserveFetch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) SetAssets(n int) {
	if m == nil {
		return
	}
	m.Assets.Set(float64(n))
}

func (m *Metrics) ObserveRecommendation(label string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(label).Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) StreamConnected() {
	if m == nil {
		return
	}
	m.StreamClients.Inc()
}

func (m *Metrics) StreamDisconnected() {
	if m == nil {
		return
	}
	m.StreamClients.Dec()
}

func (m *Metrics) StreamDrop() {
	if m == nil {
		return
	}
	m.StreamDropped.Inc()
}

func (m *Metrics) SetBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}
