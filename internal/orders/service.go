package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotAuthenticated = errors.New("sign in to place an order")
	ErrMissingField     = errors.New("missing checkout field")
)

type Backend interface {
	Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest, token string) (*domain.Order, error)
	Orders(ctx context.Context, userID int64, token string) ([]domain.Order, error)
}

type Identity interface {
	Identity() (*domain.User, string)
}

// CartClearer empties the client cart once an order has been placed.
type CartClearer interface {
	Clear(ctx context.Context) error
}

type Service struct {
	backend  Backend
	identity Identity
	cart     CartClearer
	log      logrus.FieldLogger
}

func NewService(backend Backend, identity Identity, cart CartClearer, log logrus.FieldLogger) *Service {
	return &Service{
		backend:  backend,
		identity: identity,
		cart:     cart,
		log:      log,
	}
}

// Checkout places an order from the signed-in user's remote cart and then
// empties the client cart. A failure to clear is logged; the order stands.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	user, token := s.identity.Identity()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	order, err := s.backend.Checkout(ctx, user.ID, req, token)
	if err != nil {
		return nil, fmt.Errorf("checkout failed: %w", err)
	}

	log := logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"user_id":      user.ID,
		"order_number": order.OrderNumber,
	})
	if err := s.cart.Clear(ctx); err != nil {
		log.WithError(err).Warn("order placed but cart not cleared")
	} else {
		log.Info("order placed")
	}
	return order, nil
}

func (s *Service) History(ctx context.Context) ([]domain.Order, error) {
	user, token := s.identity.Identity()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.backend.Orders(ctx, user.ID, token)
	if err != nil {
		return nil, fmt.Errorf("fetch orders failed: %w", err)
	}
	return orders, nil
}

func validate(req domain.CheckoutRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"shipping_address", req.ShippingAddress},
		{"billing_address", req.BillingAddress},
		{"payment_method", req.PaymentMethod},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}
