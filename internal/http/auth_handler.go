package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type AuthHandler struct {
	timeout time.Duration
}

func NewAuthHandler(timeout time.Duration) *AuthHandler {
	return &AuthHandler{timeout: timeout}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequestDTO struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SessionResponseDTO never carries the token; it stays inside the session.
type SessionResponseDTO struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	if !sess.Auth.Login(ctx, req.Email, req.Password) {
		respondError(w, http.StatusUnauthorized, "login_failed", "login failed")
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{Authenticated: true, User: sess.Auth.User()})
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	var req SignupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	if !sess.Auth.Signup(ctx, req.Email, req.Password, req.FirstName, req.LastName) {
		respondError(w, http.StatusBadRequest, "signup_failed", "signup failed")
		return
	}
	respondJSON(w, http.StatusCreated, SessionResponseDTO{Authenticated: true, User: sess.Auth.User()})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	sess.Auth.Logout(ctx)
	respondJSON(w, http.StatusOK, SessionResponseDTO{Authenticated: false})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	user := sess.Auth.User()
	respondJSON(w, http.StatusOK, SessionResponseDTO{Authenticated: user != nil, User: user})
}
