// Package store holds the latest snapshot and fans it out to subscribers.
package store

import (
	"sync"

	"coinpulse/internal/provider"
)

// Observer receives snapshots. It owns the value it is handed.
type Observer func(provider.Snapshot)

// Dispatcher runs a delivery on the host's execution context.
type Dispatcher func(func())

// Synchronous delivers on the publishing goroutine.
func Synchronous(f func()) { f() }

// Store keeps exactly one snapshot. Publish replaces it wholesale and
// notifies every subscriber in publish order.
//
// Observers run under the delivery lock when the dispatcher is synchronous,
// so they must not call Publish or Subscribe themselves.
type Store struct {
	dispatch Dispatcher
	onCount  func(int)

	// deliverMu orders publishes against each other and against the
	// initial delivery of a new subscriber.
	deliverMu sync.Mutex

	mu      sync.RWMutex
	current provider.Snapshot
	subs    map[uint64]Observer
	nextID  uint64
}

// Option configures a Store.
type Option func(*Store)

// WithDispatcher sets where observers run.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Store) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithSubscriberHook is called with the subscriber count after it changes.
func WithSubscriberHook(fn func(int)) Option {
	return func(s *Store) { s.onCount = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		dispatch: Synchronous,
		subs:     make(map[uint64]Observer),
		current:  provider.Snapshot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the latest snapshot, empty before the first publish.
func (s *Store) Current() provider.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Publish replaces the held snapshot and notifies subscribers.
func (s *Store) Publish(snap provider.Snapshot) {
	snap = snap.Clone()
	if snap == nil {
		snap = provider.Snapshot{}
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.current = snap
	targets := make(map[uint64]Observer, len(s.subs))
	for id, o := range s.subs {
		targets[id] = o
	}
	s.mu.Unlock()

	for id, o := range targets {
		s.deliver(id, o, snap)
	}
}

// Subscribe registers o and immediately delivers the current snapshot.
func (s *Store) Subscribe(o Observer) *Subscription {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = o
	n := len(s.subs)
	cur := s.current
	s.mu.Unlock()

	if s.onCount != nil {
		s.onCount(n)
	}
	s.deliver(id, o, cur)
	return &Subscription{store: s, id: id}
}

// Subscribers returns the number of active subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) deliver(id uint64, o Observer, snap provider.Snapshot) {
	value := snap.Clone()
	s.dispatch(func() {
		if !s.active(id) {
			return
		}
		o(value)
	})
}

func (s *Store) active(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[id]
	return ok
}

func (s *Store) remove(id uint64) {
	s.mu.Lock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	n := len(s.subs)
	s.mu.Unlock()
	if ok && s.onCount != nil {
		s.onCount(n)
	}
}

// Subscription is returned by Subscribe.
type Subscription struct {
	store *Store
	id    uint64
	once  sync.Once
}

// Unsubscribe stops further deliveries. It is safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() { sub.store.remove(sub.id) })
}
