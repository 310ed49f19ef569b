package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	timeout time.Duration
}

func NewWishlistHandler(timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{timeout: timeout}
}

type WishlistResponseDTO struct {
	Items []domain.Product `json:"items"`
	Count int              `json:"count"`
}

type ToggleResponseDTO struct {
	ProductID  int64 `json:"product_id"`
	InWishlist bool  `json:"in_wishlist"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items := sessionFromContext(r.Context()).Wishlist.Items()
	respondJSON(w, http.StatusOK, WishlistResponseDTO{Items: items, Count: len(items)})
}

// POST /api/v1/wishlist/{product_id}/toggle
//
// The body is the product record to save. An empty body saves a bare product
// carrying only the id.
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if product.ID == 0 {
		product.ID = productID
	}
	if product.ID != productID {
		respondError(w, http.StatusBadRequest, "product_id_mismatch", "body id does not match the path")
		return
	}

	in, err := sess.Wishlist.Toggle(ctx, product)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponseDTO{ProductID: productID, InWishlist: in})
}

// DELETE /api/v1/wishlist/{product_id}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := sess.Wishlist.Remove(ctx, productID); err != nil {
		handleError(w, err)
		return
	}
	items := sess.Wishlist.Items()
	respondJSON(w, http.StatusOK, WishlistResponseDTO{Items: items, Count: len(items)})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
