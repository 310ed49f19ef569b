package auth

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	UserKey  = "auth_user"
	TokenKey = "auth_token"
)

// Backend is the part of the remote API the auth store talks to.
type Backend interface {
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	Signup(ctx context.Context, req api.SignupRequest) (*domain.AuthResult, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
}

// Listener is called after the current identity changes. user is nil after
// a logout.
type Listener func(ctx context.Context, user *domain.User)

// Store holds the signed-in user and session token and mirrors both into
// storage. Every operation degrades to "did not happen" on failure.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	storage storage.Storage
	log     logrus.FieldLogger

	user  *domain.User
	token string

	listeners []Listener
}

func NewStore(backend Backend, s storage.Storage, log logrus.FieldLogger) *Store {
	return &Store{
		backend: backend,
		storage: s,
		log:     log,
	}
}

// OnChange registers fn for identity changes. Listeners run after the new
// identity is committed, outside the store lock.
func (s *Store) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Restore brings back a persisted session. A persisted token is checked
// against the backend; when the check fails the stale session is dropped
// without surfacing an error.
func (s *Store) Restore(ctx context.Context) {
	log := logger.FromContext(ctx, s.log)

	var token string
	hasToken, err := storage.LoadJSON(ctx, s.storage, TokenKey, &token)
	if err != nil {
		log.WithError(err).Warn("auth restore: token unreadable")
	}

	if hasToken && token != "" {
		user, err := s.backend.Me(ctx, token)
		if err != nil {
			// an abandoned request says nothing about the token
			if ctx.Err() != nil {
				log.WithError(err).Info("auth restore: interrupted, session kept in storage")
				return
			}
			log.WithError(err).Info("auth restore: discarding stale session")
			s.forget(ctx)
			return
		}
		if err := storage.SaveJSON(ctx, s.storage, UserKey, user); err != nil {
			log.WithError(err).Warn("auth restore: user not persisted")
		}
		s.commit(ctx, user, token)
		return
	}

	var user domain.User
	hasUser, err := storage.LoadJSON(ctx, s.storage, UserKey, &user)
	if err != nil {
		log.WithError(err).Warn("auth restore: user unreadable")
		return
	}
	if hasUser {
		s.mu.Lock()
		s.user = &user
		s.mu.Unlock()
	}
}

func (s *Store) Login(ctx context.Context, email, password string) bool {
	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Info("login failed")
		return false
	}
	return s.accept(ctx, res)
}

func (s *Store) Signup(ctx context.Context, email, password, firstName, lastName string) bool {
	res, err := s.backend.Signup(ctx, api.SignupRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Info("signup failed")
		return false
	}
	return s.accept(ctx, res)
}

// Logout invalidates the session remotely when possible and always clears
// the local identity.
func (s *Store) Logout(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			logger.FromContext(ctx, s.log).WithError(err).Debug("remote logout failed")
		}
	}
	s.forget(ctx)
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Identity returns the current user and token together.
func (s *Store) Identity() (*domain.User, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, s.token
	}
	u := *s.user
	return &u, s.token
}

func (s *Store) accept(ctx context.Context, res *domain.AuthResult) bool {
	log := logger.FromContext(ctx, s.log)
	user := res.User

	if err := storage.SaveJSON(ctx, s.storage, UserKey, &user); err != nil {
		log.WithError(err).Error("session not persisted")
		return false
	}
	if err := storage.SaveJSON(ctx, s.storage, TokenKey, res.Token); err != nil {
		log.WithError(err).Error("session not persisted")
		if errDel := s.storage.Delete(ctx, UserKey); errDel != nil {
			log.WithError(errDel).Warn("partial session left in storage")
		}
		return false
	}

	s.commit(ctx, &user, res.Token)
	return true
}

func (s *Store) commit(ctx context.Context, user *domain.User, token string) {
	s.mu.Lock()
	s.user = user
	s.token = token
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	u := *user
	for _, fn := range listeners {
		fn(ctx, &u)
	}
}

func (s *Store) forget(ctx context.Context) {
	log := logger.FromContext(ctx, s.log)
	for _, key := range []string{UserKey, TokenKey} {
		if err := s.storage.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Warn("stale session key not removed")
		}
	}

	s.mu.Lock()
	s.user = nil
	s.token = ""
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, nil)
	}
}
