package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

type Backend interface {
	Products(ctx context.Context, q api.ProductQuery) ([]domain.Product, error)
}

const DefaultFetchTimeout = 30 * time.Second

// Catalog searches the remote product list. Identical searches that are in
// flight at the same time share one request.
type Catalog struct {
	backend      Backend
	sfg          singleflight.Group
	fetchTimeout time.Duration
}

type Option func(*Catalog)

// WithFetchTimeout bounds a shared fetch. The fetch outlives any single
// caller, so it cannot follow a caller's deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		c.fetchTimeout = d
	}
}

func New(backend Backend, opts ...Option) *Catalog {
	c := &Catalog{backend: backend, fetchTimeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the products matching q. A caller whose ctx ends stops
// waiting; the shared fetch keeps going for the others.
func (c *Catalog) Search(ctx context.Context, q api.ProductQuery) ([]domain.Product, error) {
	key := q.Encode()
	ch := c.sfg.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.backend.Products(fetchCtx, q)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("search products failed: %w", ctx.Err())
	}
	if res.Err != nil {
		return nil, fmt.Errorf("search products failed: %w", res.Err)
	}

	// callers sharing a result must not see each other's edits
	products := res.Val.([]domain.Product)
	return append([]domain.Product{}, products...), nil
}

// Find returns the product with id from an unfiltered search, or nil.
func (c *Catalog) Find(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := c.Search(ctx, api.ProductQuery{})
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, nil
}
