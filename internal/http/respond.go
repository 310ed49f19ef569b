package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/chat"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts store and upstream errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
		return
	case errors.Is(err, orders.ErrMissingField):
		respondError(w, http.StatusBadRequest, "missing_field", err.Error())
		return
	case errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "empty_message", err.Error())
		return
	case errors.Is(err, orders.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "backend temporarily unavailable")
		return
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "backend did not answer in time")
		return
	}

	status := api.StatusCode(err)
	var httpStatus int
	var code string

	switch {
	case status == http.StatusUnauthorized:
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case status == http.StatusNotFound:
		httpStatus = http.StatusNotFound
		code = "not_found"
	case status >= 400 && status < 500:
		httpStatus = http.StatusBadRequest
		code = "rejected"
	case status >= 500:
		httpStatus = http.StatusBadGateway
		code = "upstream_error"
	default:
		logrus.WithError(err).Error("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, upstreamMessage(err))
}

// upstreamMessage prefers the backend's {"detail": "..."} text over the raw
// response body.
func upstreamMessage(err error) string {
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) {
		return err.Error()
	}

	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal([]byte(httpErr.Body), &body) == nil && body.Detail != "" {
		return body.Detail
	}
	if msg := strings.TrimSpace(httpErr.Body); msg != "" {
		return msg
	}
	return httpErr.Error()
}
