// Package scheduler runs a non-overlapping fetch and publish loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coinpulse/internal/provider"
)

// State of a Scheduler.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// FetchFunc produces the next snapshot. An empty result is not published.
type FetchFunc func(ctx context.Context) provider.Snapshot

// PublishFunc hands a non-empty snapshot to its consumers.
type PublishFunc func(provider.Snapshot)

// Scheduler calls fetch, publishes the result, then sleeps for the interval.
// At most one loop runs at a time.
type Scheduler struct {
	interval time.Duration
	fetch    FetchFunc
	publish  PublishFunc
	log      *zap.Logger

	mu     sync.Mutex
	handle *Handle

	// cycleMu keeps a loop started after Stop from fetching while the
	// previous loop's last cycle is still in flight.
	cycleMu sync.Mutex
}

func New(interval time.Duration, fetch FetchFunc, publish PublishFunc, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{interval: interval, fetch: fetch, publish: publish, log: log}
}

// Interval is the pause between the end of one cycle and the next fetch.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start launches the loop. While a loop is running it returns that loop's
// handle instead of starting another one.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.ctx.Err() == nil {
		return s.handle
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{ctx: loopCtx, cancel: cancel, done: make(chan struct{})}
	s.handle = h
	go s.run(h)
	return h
}

// Stop cancels the running loop, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// State reports whether a loop is running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.ctx.Err() == nil {
		return Running
	}
	return Idle
}

func (s *Scheduler) run(h *Handle) {
	defer close(h.done)
	defer s.release(h)

	s.log.Info("refresh loop started", zap.Duration("interval", s.interval))
	defer s.log.Info("refresh loop stopped")

	for {
		if h.ctx.Err() != nil {
			return
		}
		s.cycle(h)

		t := time.NewTimer(s.interval)
		select {
		case <-h.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Scheduler) cycle(h *Handle) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("refresh cycle panicked", zap.Any("panic", rec))
		}
	}()
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if h.ctx.Err() != nil {
		return
	}
	snap := s.fetch(h.ctx)
	if len(snap) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.ctx.Err() != nil {
		return
	}
	s.publish(snap)
}

func (s *Scheduler) release(h *Handle) {
	h.cancel()
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()
}

// Handle controls one running loop.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu is held while a snapshot is being published.
	mu      sync.Mutex
	stopped bool
}

// Stop cancels the loop and waits for an in-flight publish to finish, so
// nothing is published once it returns. It must not be called from inside
// the publish callback.
func (h *Handle) Stop() {
	h.cancel()
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }
