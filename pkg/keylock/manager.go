package keylock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/ports"
)

// lockEntry is the mutex of one form and the number of callers waiting on
// or holding it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes work per form ID. Entries are dropped as soon as no
// caller references them, so the map only holds forms in flight.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the expiry of distributed locks.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lock manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    ports.DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ref returns the entry of key with its count raised. Every ref is paired
// with an unref once the entry's mutex is released.
func (m *Manager) ref(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.locks[key]
	if entry == nil {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry := m.locks[key]; entry != nil {
		if entry.refs--; entry.refs <= 0 {
			delete(m.locks, key)
		}
	}
}

// Held returns the number of keys currently tracked.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock runs fn while holding the lock of key, in process and, when a
// distributed locker is set, across processes.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.ref(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.unref(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.ttl)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("distributed lock not released, it expires with its TTL",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
