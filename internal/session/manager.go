package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/chat"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/wishlist"
	"github.com/sirupsen/logrus"
)

// Session is the state of one client: its own stores over its own slice of
// storage.
type Session struct {
	ID       string
	Auth     *auth.Store
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Orders   *orders.Service
	Chat     *chat.Assistant
}

const (
	DefaultIdleTimeout = 30 * time.Minute

	// openTimeout bounds a restore, which no longer follows the request
	// that triggered it.
	openTimeout = 30 * time.Second
)

type entry struct {
	once     sync.Once
	session  *Session
	err      error
	lastUsed time.Time // guarded by Manager.mu
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	storage        storage.Storage
	client         *api.Client
	catalog        *catalog.Catalog
	log            logrus.FieldLogger
	refreshOnLogin bool
	idleTimeout    time.Duration
	now            func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Manager)

// WithRefreshOnLogin controls whether signing in replaces the cart with the
// user's remote cart. Enabled by default.
func WithRefreshOnLogin(enabled bool) Option {
	return func(m *Manager) {
		m.refreshOnLogin = enabled
	}
}

// WithIdleTimeout drops sessions that have not been used for d. Their state
// stays in storage and is restored by the next Get. Zero keeps sessions until
// Close.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

func NewManager(s storage.Storage, client *api.Client, log logrus.FieldLogger, opts ...Option) *Manager {
	m := &Manager{
		sessions:       make(map[string]*entry),
		storage:        s,
		client:         client,
		catalog:        catalog.New(client),
		log:            log,
		refreshOnLogin: true,
		idleTimeout:    DefaultIdleTimeout,
		now:            time.Now,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.idleTimeout > 0 {
		go m.evictLoop(m.idleTimeout / 2)
	} else {
		close(m.done)
	}
	return m
}

// Catalog is shared by every session.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Get returns the session for id, restoring it from storage on first use.
// Concurrent first calls for one id share a single restore.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{}
		m.sessions[id] = e
	}
	e.lastUsed = m.now()
	m.mu.Unlock()

	e.once.Do(func() {
		// the first caller going away must not decide the cached session
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), openTimeout)
		defer cancel()
		e.session, e.err = m.open(openCtx, id)
	})
	if e.err != nil {
		m.mu.Lock()
		if m.sessions[id] == e {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, e.err
	}
	return e.session, nil
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops idle eviction and drops every session. Persisted state stays
// in storage and is picked up again by the next Get.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	<-m.done

	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	m.log.WithField("sessions", n).Info("sessions closed")
}

func (m *Manager) evictLoop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stop:
			return
		}
	}
}

// evictIdle drops the sessions unused for longer than the idle timeout and
// reports how many it dropped.
func (m *Manager) evictIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	evicted := 0
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.log.WithField("sessions", evicted).Debug("idle sessions evicted")
	}
	return evicted
}

func (m *Manager) open(ctx context.Context, id string) (*Session, error) {
	log := m.log.WithField("session_id", id)
	s := storage.WithPrefix(m.storage, "session:"+id+":")

	authStore := auth.NewStore(m.client, s, log)
	cartStore := cart.NewStore(m.client, authStore, s, log)
	wishlistStore := wishlist.NewStore(s)

	if err := cartStore.Load(ctx); err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	if err := wishlistStore.Load(ctx); err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	if m.refreshOnLogin {
		authStore.OnChange(func(ctx context.Context, user *domain.User) {
			if user == nil {
				return
			}
			if err := cartStore.RefreshCart(ctx, user.ID); err != nil {
				logger.FromContext(ctx, log).WithError(err).Warn("cart refresh after sign-in failed")
			}
		})
	}
	authStore.Restore(ctx)

	return &Session{
		ID:       id,
		Auth:     authStore,
		Cart:     cartStore,
		Wishlist: wishlistStore,
		Orders:   orders.NewService(m.client, authStore, cartStore, log),
		Chat:     chat.NewAssistant(m.client, authStore, log),
	}, nil
}
