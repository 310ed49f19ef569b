package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/api/apitest"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_FiltersThroughBackend(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddProduct(domain.Product{ID: 1, Name: "Maxi", Category: "Dresses", Price: decimal.NewFromInt(80)})
	backend.AddProduct(domain.Product{ID: 2, Name: "Blazer", Category: "Jackets", Price: decimal.NewFromInt(150)})

	c := New(api.NewClient(backend.URL()))
	products, err := c.Search(context.Background(), api.ProductQuery{Category: "dresses"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Maxi", products[0].Name)
}

func TestSearch_CoalescesConcurrentIdenticalQueries(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"products": []domain.Product{{ID: 7, Name: "Wrap Dress"}},
		})
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL))
	const callers = 8

	var wg sync.WaitGroup
	results := make([][]domain.Product, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Search(context.Background(), api.ProductQuery{Occasion: "party"})
		}(i)
	}

	// give every caller time to join the in-flight request
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, int64(7), results[i][0].ID)
	}
}

func TestSearch_SharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"products": []domain.Product{{ID: 9, Name: "Linen Shirt"}},
		})
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL))
	q := api.ProductQuery{Category: "shirts"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Search(firstCtx, q)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		products []domain.Product
		err      error
	}
	second := make(chan result, 1)
	go func() {
		products, err := c.Search(context.Background(), q)
		second <- result{products, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(release)
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.products, 1)
	assert.Equal(t, int64(9), got.products[0].ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_FetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(api.NewClient(srv.URL), WithFetchTimeout(50*time.Millisecond))
	_, err := c.Search(context.Background(), api.ProductQuery{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearch_DistinctQueriesAreNotShared(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()

	c := New(api.NewClient(backend.URL()))
	ctx := context.Background()
	_, err := c.Search(ctx, api.ProductQuery{Category: "a"})
	require.NoError(t, err)
	_, err = c.Search(ctx, api.ProductQuery{Category: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.Calls("GET /products"))
}

func TestSearch_Error(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.Fail("GET /products", http.StatusServiceUnavailable, "maintenance")

	_, err := New(api.NewClient(backend.URL())).Search(context.Background(), api.ProductQuery{})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusCode(err))
}

func TestFind(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddProduct(domain.Product{ID: 3, Name: "Kaftan"})

	c := New(api.NewClient(backend.URL()))
	p, err := c.Find(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kaftan", p.Name)

	p, err = c.Find(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, p)
}
