package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProductQuery filters GET /products. Nil prices are left out of the query.
type ProductQuery struct {
	Category string
	Occasion string
	MinPrice *float64
	MaxPrice *float64
}

// Encode renders the query string without the leading '?'.
func (q ProductQuery) Encode() string {
	values := url.Values{}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Occasion != "" {
		values.Set("occasion", q.Occasion)
	}
	if q.MinPrice != nil {
		values.Set("min_price", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		values.Set("max_price", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	return values.Encode()
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*domain.AuthResult, error) {
	var res domain.AuthResult
	if err := c.Do(ctx, http.MethodPost, "/auth/signup", req, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var res domain.AuthResult
	if err := c.Do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, token, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.Do(ctx, http.MethodPost, "/auth/logout", nil, token, nil)
}

func (c *Client) Products(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	path := "/products"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var res struct {
		Products []domain.Product `json:"products"`
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	return res.Products, nil
}

func (c *Client) GetCart(ctx context.Context, userID int64, token string) ([]domain.RemoteCartItem, error) {
	var res struct {
		CartItems []domain.RemoteCartItem `json:"cart_items"`
	}
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/user/%d/cart", userID), nil, token, &res); err != nil {
		return nil, err
	}
	return res.CartItems, nil
}

func (c *Client) AddToCart(ctx context.Context, userID, productID int64, quantity int, token string) error {
	path := fmt.Sprintf("/user/%d/cart/add/%d?quantity=%d", userID, productID, quantity)
	return c.Do(ctx, http.MethodPost, path, nil, token, nil)
}

func (c *Client) Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest, token string) (*domain.Order, error) {
	var res struct {
		Order domain.Order `json:"order"`
	}
	if err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/user/%d/checkout", userID), req, token, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) Orders(ctx context.Context, userID int64, token string) ([]domain.Order, error) {
	var res struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/user/%d/orders", userID), nil, token, &res); err != nil {
		return nil, err
	}
	return res.Orders, nil
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	var res domain.ChatReply
	if err := c.Do(ctx, http.MethodPost, "/sales", req, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}
