// Package apitest runs an in-memory stand-in for the storefront backend so
// store and handler tests can talk to a real HTTP server.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type account struct {
	user     domain.User
	password string
}

type failure struct {
	status int
	body   string
}

type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	accounts map[string]*account // email -> account
	tokens   map[string]int64    // token -> user id
	products []domain.Product
	carts    map[int64][]domain.RemoteCartItem
	orders   map[int64][]domain.Order
	failures map[string]failure
	calls    map[string]int
	nextID   int64
}

func New() *Backend {
	b := &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]int64),
		carts:    make(map[int64][]domain.RemoteCartItem),
		orders:   make(map[int64][]domain.Order),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Post("/auth/signup", b.signup)
	r.Post("/auth/login", b.login)
	r.Get("/auth/me", b.me)
	r.Post("/auth/logout", b.logout)
	r.Get("/products", b.listProducts)
	r.Get("/user/{user_id}/cart", b.getCart)
	r.Post("/user/{user_id}/cart/add/{product_id}", b.addToCart)
	r.Post("/user/{user_id}/checkout", b.checkout)
	r.Get("/user/{user_id}/orders", b.listOrders)
	r.Post("/sales", b.chat)

	b.Server = httptest.NewServer(r)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) Close() { b.Server.Close() }

// AddUser registers an account and returns its user record.
func (b *Backend) AddUser(email, password, firstName, lastName string) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, firstName, lastName)
}

func (b *Backend) addUserLocked(email, password, firstName, lastName string) domain.User {
	b.nextID++
	a := &account{
		user: domain.User{
			ID:        b.nextID,
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
			IsActive:  true,
		},
		password: password,
	}
	b.accounts[email] = a
	return a.user
}

// IssueToken creates a valid session token for userID.
func (b *Backend) IssueToken(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueTokenLocked(userID)
}

func (b *Backend) issueTokenLocked(userID int64) string {
	token := uuid.NewString()
	b.tokens[token] = userID
	return token
}

func (b *Backend) AddProduct(p domain.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products = append(b.products, p)
}

// SetCart replaces the stored cart of userID.
func (b *Backend) SetCart(userID int64, items []domain.RemoteCartItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[userID] = append([]domain.RemoteCartItem(nil), items...)
}

func (b *Backend) Cart(userID int64) []domain.RemoteCartItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.RemoteCartItem(nil), b.carts[userID]...)
}

// Fail makes every request to route ("METHOD /pattern") answer with status
// and body until Recover is called.
func (b *Backend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, body: body}
}

func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Calls reports how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// enter records the call and writes the configured failure, if any. It
// returns false when the handler must stop.
func (b *Backend) enter(w http.ResponseWriter, r *http.Request) bool {
	route := r.Method + " " + chi.RouteContext(r.Context()).RoutePattern()

	b.mu.Lock()
	b.calls[route]++
	f, failing := b.failures[route]
	b.mu.Unlock()

	if failing {
		http.Error(w, f.body, f.status)
		return false
	}
	return true
}

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	user := b.addUserLocked(req.Email, req.Password, req.FirstName, req.LastName)
	writeJSON(w, http.StatusOK, domain.AuthResult{User: user, Token: b.issueTokenLocked(user.ID)})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[req.Email]
	if !ok || a.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, domain.AuthResult{User: a.user, Token: b.issueTokenLocked(a.user.ID)})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	user, ok := b.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	b.mu.Lock()
	delete(b.tokens, bearer(r))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (b *Backend) listProducts(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	q := r.URL.Query()
	category := q.Get("category")
	occasion := q.Get("occasion")
	minPrice, hasMin := parsePrice(q.Get("min_price"))
	maxPrice, hasMax := parsePrice(q.Get("max_price"))

	b.mu.Lock()
	defer b.mu.Unlock()
	products := make([]domain.Product, 0, len(b.products))
	for _, p := range b.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if occasion != "" && !strings.EqualFold(p.Occasion, occasion) {
			continue
		}
		if hasMin && p.Price.LessThan(minPrice) {
			continue
		}
		if hasMax && p.Price.GreaterThan(maxPrice) {
			continue
		}
		products = append(products, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (b *Backend) getCart(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]domain.RemoteCartItem, 0, len(b.carts[userID]))
	for _, item := range b.carts[userID] {
		if p := b.productLocked(item.ProductID); p != nil {
			item.Product = p
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "cart_items": items})
}

func (b *Backend) addToCart(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}
	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "quantity must be an integer")
			return
		}
		quantity = n
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.carts[userID]
	for i := range cart {
		if cart[i].ProductID == productID {
			cart[i].Quantity += quantity
			writeJSON(w, http.StatusOK, map[string]any{"message": "Item added to cart"})
			return
		}
	}
	b.nextID++
	b.carts[userID] = append(cart, domain.RemoteCartItem{
		ID:        b.nextID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item added to cart", "user_id": userID, "product_id": productID})
}

func (b *Backend) checkout(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.carts[userID]
	if len(cart) == 0 {
		writeDetail(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	b.nextID++
	order := domain.Order{
		ID:          b.nextID,
		OrderNumber: fmt.Sprintf("ORD-%04d", len(b.orders[userID])+1),
		Status:      "processing",
		FinalAmount: decimal.Zero,
	}
	for _, item := range cart {
		p := b.productLocked(item.ProductID)
		if p == nil {
			continue
		}
		total := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		b.nextID++
		order.Items = append(order.Items, domain.OrderItem{
			ID:          b.nextID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			TotalPrice:  total,
		})
		order.FinalAmount = order.FinalAmount.Add(total)
	}
	b.orders[userID] = append(b.orders[userID], order)
	delete(b.carts, userID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order created", "order": order})
}

func (b *Backend) listOrders(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	orders := append([]domain.Order{}, b.orders[userID]...)
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "orders": orders})
}

func (b *Backend) chat(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, r) {
		return
	}
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	writeJSON(w, http.StatusOK, domain.ChatReply{
		Reply:     "You said: " + req.Message,
		SessionID: sessionID,
	})
}

func (b *Backend) authenticate(r *http.Request) (domain.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userID, ok := b.tokens[bearer(r)]
	if !ok {
		return domain.User{}, false
	}
	for _, a := range b.accounts {
		if a.user.ID == userID {
			return a.user, true
		}
	}
	return domain.User{}, false
}

func (b *Backend) productLocked(id int64) *domain.Product {
	for i := range b.products {
		if b.products[i].ID == id {
			p := b.products[i]
			return &p
		}
	}
	return nil
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, name+" must be an integer")
		return 0, false
	}
	return id, true
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
