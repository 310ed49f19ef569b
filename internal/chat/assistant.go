package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/sirupsen/logrus"
)

// FallbackReply is shown when the sales assistant cannot be reached.
const FallbackReply = "Sorry, chat is temporarily unavailable."

var ErrEmptyMessage = errors.New("message is empty")

type Backend interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
}

type Identity interface {
	Identity() (*domain.User, string)
}

// Assistant holds one sales conversation. The conversation id handed out by
// the server is sent back on every following message.
type Assistant struct {
	backend  Backend
	identity Identity
	log      logrus.FieldLogger

	mu        sync.Mutex
	sessionID string
}

func NewAssistant(backend Backend, identity Identity, log logrus.FieldLogger) *Assistant {
	return &Assistant{
		backend:  backend,
		identity: identity,
		log:      log,
	}
}

// Send posts message and returns the assistant's reply. When the backend
// fails, the reply is FallbackReply and the error is returned alongside.
func (a *Assistant) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	req := domain.ChatRequest{
		Message:   message,
		SessionID: a.SessionID(),
		Channel:   domain.ChannelWeb,
	}
	if user, _ := a.identity.Identity(); user != nil {
		id := user.ID
		req.UserID = &id
	}

	reply, err := a.backend.Chat(ctx, req)
	if err != nil {
		logger.FromContext(ctx, a.log).WithError(err).Warn("sales chat unavailable")
		return FallbackReply, fmt.Errorf("chat failed: %w", err)
	}

	if reply.SessionID != "" {
		a.mu.Lock()
		a.sessionID = reply.SessionID
		a.mu.Unlock()
	}
	return reply.Reply, nil
}

func (a *Assistant) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Reset forgets the conversation so the next message starts a new one.
func (a *Assistant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = ""
}
