package wishlist

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

const ItemsKey = "wishlist_items"

// Store is a local-only set of saved products, unique by product id and kept
// in insertion order.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	items   []domain.Product
}

func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

// Load replaces the wishlist with the persisted snapshot. Duplicate ids in
// the snapshot collapse to their first occurrence.
func (s *Store) Load(ctx context.Context) error {
	var items []domain.Product
	if _, err := storage.LoadJSON(ctx, s.storage, ItemsKey, &items); err != nil {
		return err
	}

	seen := make(map[int64]bool, len(items))
	unique := make([]domain.Product, 0, len(items))
	for _, p := range items {
		if !seen[p.ID] {
			seen[p.ID] = true
			unique = append(unique, p)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = unique
	return nil
}

// Add saves product unless one with the same id is already present.
func (s *Store) Add(ctx context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(product.ID) >= 0 {
		return nil
	}
	next := append(append([]domain.Product{}, s.items...), product)
	return s.saveLocked(ctx, next)
}

func (s *Store) Remove(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, productID)
}

// Toggle removes product when present and adds it otherwise. It reports
// whether the product is in the wishlist afterwards.
func (s *Store) Toggle(ctx context.Context, product domain.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(product.ID) >= 0 {
		if err := s.removeLocked(ctx, product.ID); err != nil {
			return true, err
		}
		return false, nil
	}

	next := append(append([]domain.Product{}, s.items...), product)
	if err := s.saveLocked(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(productID) >= 0
}

func (s *Store) Items() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product{}, s.items...)
}

func (s *Store) removeLocked(ctx context.Context, productID int64) error {
	i := s.indexLocked(productID)
	if i < 0 {
		return nil
	}
	next := make([]domain.Product, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	return s.saveLocked(ctx, next)
}

func (s *Store) indexLocked(productID int64) int {
	for i, p := range s.items {
		if p.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) saveLocked(ctx context.Context, next []domain.Product) error {
	if err := storage.SaveJSON(ctx, s.storage, ItemsKey, next); err != nil {
		return err
	}
	s.items = next
	return nil
}
