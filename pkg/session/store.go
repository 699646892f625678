package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives session values in mutation order.
//
// An observer may call Set, Clear or Subscribe on the same store. Values
// produced that way are queued and delivered once the current value has
// reached every subscriber.
type Observer func(Session)

type subscriber struct {
	id     uint64
	fn     Observer
	active atomic.Bool
}

// Store is the process-wide session container.
//
// The store exclusively owns the in-memory session. Storage is a passive
// mirror: it is written on every mutation and read only once, during
// hydration.
type Store struct {
	storage Storage
	logger  *slog.Logger
	metrics *storeMetrics

	hydrateOnce sync.Once
	hydrateErr  error

	// writeMu serializes mutations and subscriptions. Deliveries are queued
	// under it so observers see values in mutation order.
	writeMu sync.Mutex

	// mu protects value.
	mu    sync.RWMutex
	value Session

	// subMu protects subs and nextID.
	subMu  sync.Mutex
	subs   []*subscriber
	nextID uint64

	// queueMu protects queue and draining.
	queueMu  sync.Mutex
	queue    []delivery
	draining bool
}

// delivery is a queued notification. subs is the subscriber list at the time
// the value was produced.
type delivery struct {
	value Session
	subs  []*subscriber
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithLogger sets the store logger.
// Default: slog.Default() with component=session.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

// WithRegisterer enables Prometheus metrics on the given registerer.
func WithRegisterer(reg prometheus.Registerer) StoreOption {
	return func(c *storeConfig) {
		c.registerer = reg
	}
}

// NewStore creates an empty store mirrored to storage.
// A nil storage disables persistence. No I/O happens until first use.
func NewStore(storage Storage, opts ...StoreOption) *Store {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default().With("component", "session")
	}

	s := &Store{
		storage: storage,
		logger:  cfg.logger,
	}
	if cfg.registerer != nil {
		s.metrics = newStoreMetrics(cfg.registerer)
	}
	return s
}

// Open creates a store and hydrates it from storage.
// On a hydration failure the error is returned along with nil.
func Open(ctx context.Context, storage Storage, opts ...StoreOption) (*Store, error) {
	s := NewStore(storage, opts...)
	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Hydrate loads the session from storage. Only the first call on a store (or
// its first use, whichever comes first) touches storage; later calls return
// the same result.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		s.hydrateErr = s.hydrate(ctx)
	})
	return s.hydrateErr
}

// ensureHydrated triggers hydration on first use. Failures are logged by
// hydrate and remain available through Hydrate.
func (s *Store) ensureHydrated(ctx context.Context) {
	_ = s.Hydrate(ctx)
}

func (s *Store) hydrate(ctx context.Context) error {
	if !available(s.storage) {
		s.logger.Debug("durable storage unavailable, starting without a session")
		s.metrics.hydrated("unavailable")
		return nil
	}

	token, hasToken, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return s.hydrationFailed(TokenKey, err)
	}
	rawUser, hasUser, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		return s.hydrationFailed(UserKey, err)
	}

	if !hasToken || !hasUser || token == "" {
		s.logger.Debug("no stored session",
			"has_token", hasToken,
			"has_user", hasUser,
		)
		s.metrics.hydrated("empty")
		return nil
	}

	user, err := DecodeUser(rawUser)
	if err != nil {
		return s.hydrationFailed(UserKey, err)
	}

	s.mu.Lock()
	s.value = Session{Token: token, User: user}
	s.mu.Unlock()

	s.logger.Info("session restored from storage", "user_id", user.ID)
	s.metrics.hydrated("restored")
	return nil
}

func (s *Store) hydrationFailed(key string, err error) error {
	herr := &HydrationError{Key: key, Err: err}
	s.logger.Error("session hydration failed", "key", key, "error", err)
	s.metrics.hydrated("failed")
	return herr
}

// Read returns a copy of the current session. It never fails.
func (s *Store) Read() Session {
	s.ensureHydrated(context.Background())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.clone()
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	return s.Read().Token
}

// Set replaces the session with token and user, mirrors both to storage and
// notifies subscribers in subscription order.
//
// A partial pair is rejected with ErrPartialSession and changes nothing.
// A failed mirror write is returned as *PersistError after the in-memory
// value has changed and subscribers have been notified.
//
// Subscribers are notified before Set returns, except when Set is called
// from an observer or while another goroutine is delivering. The value is
// then queued and delivered by the call already in progress.
func (s *Store) Set(ctx context.Context, token string, user *User) error {
	if !validPair(token, user) {
		return ErrPartialSession
	}
	s.ensureHydrated(ctx)

	encoded, err := EncodeUser(user)
	if err != nil {
		return err
	}
	u := *user
	next := Session{Token: token, User: &u}

	s.writeMu.Lock()
	s.store(next)

	var perr error
	if available(s.storage) {
		if err := setEntries(ctx, s.storage, map[string]string{
			TokenKey: token,
			UserKey:  encoded,
		}); err != nil {
			perr = s.persistFailed("set", err)
		}
	}

	s.enqueue(next, s.snapshot())
	s.writeMu.Unlock()

	s.drain()
	s.metrics.mutated("set")
	return perr
}

// Clear logs out: both fields become absent, both storage entries are
// removed and subscribers receive the empty session.
func (s *Store) Clear(ctx context.Context) error {
	s.ensureHydrated(ctx)

	s.writeMu.Lock()
	s.store(Session{})

	var perr error
	if available(s.storage) {
		if err := removeEntries(ctx, s.storage, TokenKey, UserKey); err != nil {
			perr = s.persistFailed("clear", err)
		}
	}

	s.enqueue(Session{}, s.snapshot())
	s.writeMu.Unlock()

	s.drain()
	s.metrics.mutated("clear")
	return perr
}

// Subscribe registers fn. fn is called with the current session and then
// with every new value until the returned function is called. When called
// from an observer, the first call to fn is queued like any other value.
// The returned function is idempotent and may be called from inside fn.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.ensureHydrated(context.Background())

	s.writeMu.Lock()
	s.subMu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, fn: fn}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)
	count := len(s.subs)
	s.subMu.Unlock()
	s.metrics.subscribers(count)

	s.mu.RLock()
	current := s.value.clone()
	s.mu.RUnlock()
	s.enqueue(current, []*subscriber{sub})
	s.writeMu.Unlock()

	s.drain()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

// Subscribers returns the number of active subscribers.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Store) unsubscribe(sub *subscriber) {
	sub.active.Store(false)

	s.subMu.Lock()
	for i, existing := range s.subs {
		if existing.id == sub.id {
			// Keep order: notifications follow subscription order.
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
	count := len(s.subs)
	s.subMu.Unlock()
	s.metrics.subscribers(count)
}

// store swaps the in-memory value. Caller holds writeMu.
func (s *Store) store(next Session) {
	s.mu.Lock()
	s.value = next
	s.mu.Unlock()
}

// snapshot copies the subscriber list.
func (s *Store) snapshot() []*subscriber {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	return subs
}

// enqueue queues value for subs. Caller holds writeMu.
func (s *Store) enqueue(value Session, subs []*subscriber) {
	s.queueMu.Lock()
	s.queue = append(s.queue, delivery{value: value, subs: subs})
	s.queueMu.Unlock()
}

// drain delivers queued values in order. Only one caller drains at a time;
// the others return at once and leave their values to it.
func (s *Store) drain() {
	s.queueMu.Lock()
	if s.draining {
		s.queueMu.Unlock()
		return
	}
	s.draining = true
	s.queueMu.Unlock()

	done := false
	defer func() {
		// An observer panicked; let the next mutation drain what is left.
		if !done {
			s.queueMu.Lock()
			s.draining = false
			s.queueMu.Unlock()
		}
	}()

	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.queue = nil
			s.draining = false
			done = true
			s.queueMu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		for _, sub := range d.subs {
			if !sub.active.Load() {
				continue
			}
			sub.fn(d.value.clone())
		}
	}
}

func (s *Store) persistFailed(op string, err error) error {
	s.logger.Error("session mirror write failed", "op", op, "error", err)
	s.metrics.persistFailed(op)
	return &PersistError{Op: op, Err: err}
}
