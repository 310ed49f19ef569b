package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/chat"
)

type ChatHandler struct {
	timeout time.Duration
}

func NewChatHandler(timeout time.Duration) *ChatHandler {
	return &ChatHandler{timeout: timeout}
}

type ChatRequestDTO struct {
	Message string `json:"message"`
}

type ChatResponseDTO struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// POST /api/v1/chat
//
// A backend failure still answers 200 with the fallback reply so the chat
// window has something to show.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	sess := sessionFromContext(r.Context())

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	reply, err := sess.Chat.Send(ctx, req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatResponseDTO{
		Reply:     reply,
		SessionID: sess.Chat.SessionID(),
		Fallback:  err != nil,
	})
}
