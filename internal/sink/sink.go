// Package sink forwards published snapshots to a NATS subject.
package sink

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"coinpulse/internal/provider"
)

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the message body written to the subject.
type Envelope struct {
	Provider    string            `json:"provider"`
	PublishedAt time.Time         `json:"published_at"`
	Assets      provider.Snapshot `json:"assets"`
}

// NATS publishes every non-empty snapshot it observes. Delivery is
// at-most-once; failures are logged and dropped.
type NATS struct {
	pub      Publisher
	subject  string
	provider string
	log      *zap.Logger
	now      func() time.Time
	close    func()
}

func New(pub Publisher, subject, providerName string, log *zap.Logger) *NATS {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATS{pub: pub, subject: subject, provider: providerName, log: log, now: time.Now}
}

// Connect dials url and returns a sink that owns the connection.
func Connect(url, subject, providerName string, log *zap.Logger) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("coinpulse"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	s := New(nc, subject, providerName, log)
	s.close = func() {
		_ = nc.Drain()
		nc.Close()
	}
	return s, nil
}

// Observe matches store.Observer.
func (s *NATS) Observe(snap provider.Snapshot) {
	if len(snap) == 0 {
		return
	}
	data, err := json.Marshal(Envelope{Provider: s.provider, PublishedAt: s.now().UTC(), Assets: snap})
	if err != nil {
		s.log.Error("encode snapshot", zap.Error(err))
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.log.Warn("publish snapshot to nats", zap.String("subject", s.subject), zap.Error(err))
	}
}

func (s *NATS) Close() {
	if s.close != nil {
		s.close()
	}
}
