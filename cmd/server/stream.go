package main

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"coinpulse/internal/logger"
	"coinpulse/internal/provider"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 1 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// mailbox holds only the newest undelivered snapshot for one client.
type mailbox struct {
	mu     sync.Mutex
	latest provider.Snapshot
	full   bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// offer stores snap and reports whether an unsent snapshot was replaced.
func (m *mailbox) offer(snap provider.Snapshot) bool {
	m.mu.Lock()
	dropped := m.full
	m.latest, m.full = snap, true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (m *mailbox) take() (provider.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return nil, false
	}
	snap := m.latest
	m.latest, m.full = nil, false
	return snap, true
}

// handleStream pushes every published snapshot to a websocket client,
// starting with the current one. Slow clients skip intermediate snapshots.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), s.log)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.StreamConnected()
	defer s.metrics.StreamDisconnected()

	box := newMailbox()
	sub := s.feed.Subscribe(func(snap provider.Snapshot) {
		if box.offer(snap) {
			s.metrics.StreamDrop()
		}
	})
	defer sub.Unsubscribe()

	closed := make(chan struct{})
	go readPump(conn, closed, log)
	s.writePump(conn, box, closed, log)
}

// readPump discards client messages and keeps the read deadline alive on
// pongs. It closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Debug("stream client timed out")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("stream read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *server) writePump(conn *websocket.Conn, box *mailbox, closed <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-box.notify:
			snap, ok := box.take()
			if !ok {
				continue
			}
			b, err := json.Marshal(assetsResponse{Provider: s.feed.Provider(), Assets: snap})
			if err != nil {
				log.Error("encode stream message", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		}
	}
}
