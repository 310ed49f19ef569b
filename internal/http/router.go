package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the storefront API under /api/v1. Every API route runs in
// the session named by the X-Session-ID header.
func NewRouter(manager *session.Manager, log logrus.FieldLogger, cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.RequestTimeout)
	cartHandler := NewCartHandler(manager.Catalog(), cfg.RequestTimeout)
	wishlistHandler := NewWishlistHandler(cfg.RequestTimeout)
	productHandler := NewProductHandler(manager.Catalog(), cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.RequestTimeout)
	chatHandler := NewChatHandler(cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(manager, log))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/signup", authHandler.Signup)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.List)
			r.Post("/{product_id}/toggle", wishlistHandler.Toggle)
			r.Delete("/{product_id}", wishlistHandler.Remove)
		})

		r.Get("/products", productHandler.Get)
		r.Post("/checkout", ordersHandler.Checkout)
		r.Get("/orders", ordersHandler.ListOrders)
		r.Post("/chat", chatHandler.Send)
	})

	return otelhttp.NewHandler(r, "storefront")
}
