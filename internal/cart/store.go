package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const ItemsKey = "cart_items"

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Backend is the remote per-user cart.
type Backend interface {
	AddToCart(ctx context.Context, userID, productID int64, quantity int, token string) error
	GetCart(ctx context.Context, userID int64, token string) ([]domain.RemoteCartItem, error)
}

// Identity reports who is signed in. A nil user means the cart is local only.
type Identity interface {
	Identity() (*domain.User, string)
}

// Store is the client cart. Signed-out carts are merged locally by
// (product, size, color); signed-in carts are owned by the backend and
// replaced wholesale on every refresh.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	identity Identity
	storage  storage.Storage
	log      logrus.FieldLogger
	now      func() time.Time

	lines  []domain.CartLine
	lastID int64
}

func NewStore(backend Backend, identity Identity, s storage.Storage, log logrus.FieldLogger) *Store {
	return &Store{
		backend:  backend,
		identity: identity,
		storage:  s,
		log:      log,
		now:      time.Now,
	}
}

// Load replaces the in-memory cart with the persisted snapshot. A malformed
// snapshot leaves an empty cart. Lines below quantity 1 are dropped and lines
// sharing a product, size and color are merged into the first of them.
func (s *Store) Load(ctx context.Context) error {
	var lines []domain.CartLine
	if _, err := storage.LoadJSON(ctx, s.storage, ItemsKey, &lines); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(normalize(lines))
	return nil
}

func normalize(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
next:
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		for i := range out {
			if out[i].Matches(line.Product.ID, line.Size, line.Color) {
				out[i].Quantity += line.Quantity
				continue next
			}
		}
		out = append(out, line)
	}
	return out
}

// AddItem adds quantity of product in the given size and color. When a user
// is signed in the backend performs the add and the cart is refreshed from
// it; otherwise an existing line with the same key absorbs the quantity.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int, size, color string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	if user, token := s.identity.Identity(); user != nil {
		if err := s.backend.AddToCart(ctx, user.ID, product.ID, quantity, token); err != nil {
			return fmt.Errorf("remote add to cart failed: %w", err)
		}
		return s.RefreshCart(ctx, user.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	merged := false
	for i := range next {
		if next[i].Matches(product.ID, size, color) {
			next[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		next = append(next, domain.CartLine{
			ID:       s.nextIDLocked(),
			Product:  product,
			Quantity: quantity,
			Size:     size,
			Color:    color,
		})
	}
	return s.saveLocked(ctx, next)
}

// UpdateQuantity sets the quantity of a line. A quantity below 1 removes the
// line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, lineID int64, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, lineID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	for i := range next {
		if next[i].ID == lineID {
			if next[i].Quantity == quantity {
				return nil
			}
			next[i].Quantity = quantity
			return s.saveLocked(ctx, next)
		}
	}
	return nil
}

// RemoveItem drops a line. Unknown ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, lineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.CartLine, 0, len(s.lines))
	for _, line := range s.lines {
		if line.ID != lineID {
			next = append(next, line)
		}
	}
	if len(next) == len(s.lines) {
		return nil
	}
	return s.saveLocked(ctx, next)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, []domain.CartLine{})
}

// RefreshCart overwrites the cart with the backend's copy for userID. Lines
// that only existed locally are lost; there is no merge.
func (s *Store) RefreshCart(ctx context.Context, userID int64) error {
	_, token := s.identity.Identity()
	items, err := s.backend.GetCart(ctx, userID, token)
	if err != nil {
		return fmt.Errorf("fetch remote cart failed: %w", err)
	}

	next := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		next = append(next, item.Line())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dropped := len(s.lines); dropped > 0 {
		logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"user_id":     userID,
			"local_lines": dropped,
			"remote":      len(next),
		}).Debug("cart replaced by remote copy")
	}
	return s.saveLocked(ctx, next)
}

func (s *Store) Items() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := decimal.Zero
	for _, line := range s.lines {
		subtotal = subtotal.Add(line.Total())
	}
	return subtotal
}

// saveLocked persists next and only then makes it the current cart, so a
// failed write leaves the cart as it was.
func (s *Store) saveLocked(ctx context.Context, next []domain.CartLine) error {
	if err := storage.SaveJSON(ctx, s.storage, ItemsKey, next); err != nil {
		return err
	}
	s.setLocked(next)
	return nil
}

func (s *Store) setLocked(lines []domain.CartLine) {
	s.lines = lines
	for _, line := range lines {
		if line.ID > s.lastID {
			s.lastID = line.ID
		}
	}
}

func (s *Store) cloneLocked() []domain.CartLine {
	return append([]domain.CartLine{}, s.lines...)
}

// nextIDLocked hands out millisecond timestamps, bumped past the highest id
// seen so that two adds within one millisecond stay distinct.
func (s *Store) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}
