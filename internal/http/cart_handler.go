package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	catalog *catalog.Catalog
	timeout time.Duration
}

func NewCartHandler(c *catalog.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog: c,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.CartLine `json:"items"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
}

func cartResponse(sess *session.Session) CartResponseDTO {
	return CartResponseDTO{
		Items:      sess.Cart.Items(),
		TotalItems: sess.Cart.TotalItems(),
		Subtotal:   sess.Cart.Subtotal(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartResponse(sessionFromContext(r.Context())))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.Find(ctx, req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}
	if product == nil {
		respondError(w, http.StatusNotFound, "product_not_found", fmt.Sprintf("product %d not found", req.ProductID))
		return
	}
	if code, msg := checkVariant(*product, req.Size, req.Color); code != "" {
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}

	if err := sess.Cart.AddItem(ctx, *product, req.Quantity, req.Size, req.Color); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(sess))
}

// checkVariant requires a size and color whenever the product offers a choice,
// and the choice must be one the product lists.
func checkVariant(p domain.Product, size, color string) (string, string) {
	if sizes := p.Sizes(); len(sizes) > 0 {
		if strings.TrimSpace(size) == "" {
			return "size_required", "please select a size"
		}
		if !slices.Contains(sizes, size) {
			return "invalid_size", fmt.Sprintf("size %q is not available", size)
		}
	}
	if colors := p.ColorList(); len(colors) > 0 {
		if strings.TrimSpace(color) == "" {
			return "color_required", "please select a color"
		}
		if !slices.Contains(colors, color) {
			return "invalid_color", fmt.Sprintf("color %q is not available", color)
		}
	}
	return "", ""
}

// PUT /api/v1/cart/items/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	lineID, ok := lineIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := sess.Cart.UpdateQuantity(ctx, lineID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

// DELETE /api/v1/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	lineID, ok := lineIDParam(w, r)
	if !ok {
		return
	}

	if err := sess.Cart.RemoveItem(ctx, lineID); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	if err := sess.Cart.Clear(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(sess))
}

func lineIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	lineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || lineID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_line_id", "id must be a positive integer")
		return 0, false
	}
	return lineID, true
}
