package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductHandler struct {
	catalog *catalog.Catalog
	timeout time.Duration
}

func NewProductHandler(c *catalog.Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

// GET /api/v1/products?category=&occasion=&min_price=&max_price=
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	params := r.URL.Query()
	q := api.ProductQuery{
		Category: params.Get("category"),
		Occasion: params.Get("occasion"),
	}
	for name, dst := range map[string]**float64{"min_price": &q.MinPrice, "max_price": &q.MaxPrice} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative number")
			return
		}
		*dst = &v
	}

	products, err := h.catalog.Search(ctx, q)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}
