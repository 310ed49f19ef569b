package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/api/apitest"
	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tote = domain.Product{ID: 3, Name: "Canvas Tote", Price: decimal.NewFromInt(20)}

func setup(t *testing.T, opts ...Option) (*Manager, *apitest.Backend, *storage.MemoryStorage) {
	backend := apitest.New()
	t.Cleanup(backend.Close)

	mem := storage.NewMemoryStorage()
	m := NewManager(mem, api.NewClient(backend.URL()), logger.Discard(), opts...)
	t.Cleanup(m.Close)
	return m, backend, mem
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func withClock(c *fakeClock) Option {
	return func(m *Manager) {
		m.now = c.Now
	}
}

func TestGet_ReturnsSameSession(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "tab-1")
	require.NoError(t, err)
	b, err := m.Get(ctx, "tab-1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
}

func TestGet_ConcurrentFirstUseSharesSession(t *testing.T) {
	m, _, _ := setup(t)

	var wg sync.WaitGroup
	got := make([]*Session, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(context.Background(), "shared")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}

func TestSessions_AreIsolated(t *testing.T) {
	m, _, mem := setup(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "a")
	require.NoError(t, err)
	b, err := m.Get(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, a.Cart.AddItem(ctx, tote, 1, "One Size", "Natural"))
	_, err = a.Wishlist.Toggle(ctx, tote)
	require.NoError(t, err)

	assert.Len(t, a.Cart.Items(), 1)
	assert.Empty(t, b.Cart.Items())
	assert.Empty(t, b.Wishlist.Items())
	assert.ElementsMatch(t, []string{"session:a:cart_items", "session:a:wishlist_items"}, mem.Keys())
}

func TestGet_RestoresPersistedState(t *testing.T) {
	m, backend, mem := setup(t)
	ctx := context.Background()
	backend.AddUser("lin@example.com", "secret", "Lin", "Wu")

	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(ctx, tote, 2, "One Size", "Natural"))
	require.True(t, s.Auth.Login(ctx, "lin@example.com", "secret"))

	restarted := NewManager(mem, api.NewClient(backend.URL()), logger.Discard(), WithRefreshOnLogin(false))
	defer restarted.Close()
	s2, err := restarted.Get(ctx, "tab")
	require.NoError(t, err)

	require.True(t, s2.Auth.IsAuthenticated())
	assert.Equal(t, "lin@example.com", s2.Auth.User().Email)
	assert.Equal(t, s.Auth.Token(), s2.Auth.Token())
}

func TestLogin_RefreshesCartFromServer(t *testing.T) {
	m, backend, _ := setup(t)
	ctx := context.Background()
	user := backend.AddUser("lin@example.com", "secret", "", "")
	backend.AddProduct(tote)
	backend.SetCart(user.ID, []domain.RemoteCartItem{{ID: 50, UserID: user.ID, ProductID: tote.ID, Quantity: 4}})

	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(ctx, domain.Product{ID: 8, Name: "Scarf"}, 1, "", "Blue"))

	require.True(t, s.Auth.Login(ctx, "lin@example.com", "secret"))

	items := s.Cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(50), items[0].ID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, "Canvas Tote", items[0].Product.Name)
}

func TestLogin_RefreshDisabledKeepsLocalCart(t *testing.T) {
	m, backend, _ := setup(t, WithRefreshOnLogin(false))
	ctx := context.Background()
	backend.AddUser("lin@example.com", "secret", "", "")

	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(ctx, tote, 1, "", ""))
	require.True(t, s.Auth.Login(ctx, "lin@example.com", "secret"))

	assert.Len(t, s.Cart.Items(), 1)
	assert.Equal(t, 0, backend.Calls("GET /user/{user_id}/cart"))
}

func TestCheckout_ClearsSessionCart(t *testing.T) {
	m, backend, mem := setup(t)
	ctx := context.Background()
	backend.AddUser("lin@example.com", "secret", "", "")
	backend.AddProduct(tote)

	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	require.True(t, s.Auth.Login(ctx, "lin@example.com", "secret"))
	require.NoError(t, s.Cart.AddItem(ctx, tote, 1, "", ""))
	require.Len(t, s.Cart.Items(), 1)

	_, err = s.Orders.Checkout(ctx, domain.CheckoutRequest{
		ShippingAddress: "here",
		BillingAddress:  "here",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)
	assert.Empty(t, s.Cart.Items())

	var persisted []domain.CartLine
	_, err = storage.LoadJSON(ctx, mem, "session:tab:"+cart.ItemsKey, &persisted)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestClose_DropsSessionsButKeepsStorage(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(ctx, tote, 1, "", ""))

	m.Close()
	assert.Equal(t, 0, m.Len())

	reopened, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	assert.NotSame(t, s, reopened)
	assert.Len(t, reopened.Cart.Items(), 1)
}

func TestGet_CancelledFirstCallerStillRestoresSession(t *testing.T) {
	m, backend, mem := setup(t)
	user := backend.AddUser("lin@example.com", "secret", "Lin", "")
	token := backend.IssueToken(user.ID)
	require.NoError(t, storage.SaveJSON(context.Background(), mem, "session:tab:"+auth.TokenKey, token))
	require.NoError(t, storage.SaveJSON(context.Background(), mem, "session:tab:"+auth.UserKey, user))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := m.Get(ctx, "tab")
	require.NoError(t, err)

	require.True(t, s.Auth.IsAuthenticated())
	assert.Equal(t, user.ID, s.Auth.User().ID)

	var persisted string
	found, err := storage.LoadJSON(context.Background(), mem, "session:tab:"+auth.TokenKey, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, token, persisted)
}

func TestEvictIdle_DropsUnusedSessionsAndRestoresLater(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m, _, _ := setup(t, WithIdleTimeout(10*time.Minute), withClock(clock))
	ctx := context.Background()

	idle, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	require.NoError(t, idle.Cart.AddItem(ctx, tote, 2, "One Size", "Natural"))

	clock.Advance(6 * time.Minute)
	_, err = m.Get(ctx, "busy")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, m.evictIdle())
	assert.Equal(t, 1, m.Len())

	reopened, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, reopened)
	require.Len(t, reopened.Cart.Items(), 1)
	assert.Equal(t, 2, reopened.Cart.Items()[0].Quantity)
	assert.Equal(t, 2, m.Len())
}

func TestEvictIdle_UseKeepsSessionOpen(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m, _, _ := setup(t, WithIdleTimeout(10*time.Minute), withClock(clock))
	ctx := context.Background()

	first, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	for range 5 {
		clock.Advance(5 * time.Minute)
		_, err = m.Get(ctx, "tab")
		require.NoError(t, err)
		assert.Equal(t, 0, m.evictIdle())
	}

	again, err := m.Get(ctx, "tab")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestEvictLoop_RunsInBackground(t *testing.T) {
	m, _, _ := setup(t, WithIdleTimeout(20*time.Millisecond))

	_, err := m.Get(context.Background(), "tab")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWithIdleTimeout_ZeroDisablesEviction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m, _, _ := setup(t, WithIdleTimeout(0), withClock(clock))

	_, err := m.Get(context.Background(), "tab")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)

	assert.Equal(t, 0, m.evictIdle())
	assert.Equal(t, 1, m.Len())
}

type unreadableStorage struct {
	*storage.MemoryStorage
}

func (unreadableStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestGet_StorageFailureIsNotCached(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	m := NewManager(unreadableStorage{storage.NewMemoryStorage()}, api.NewClient(backend.URL()), logger.Discard())
	defer m.Close()

	_, err := m.Get(context.Background(), "tab")
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 0, m.Len())
}
