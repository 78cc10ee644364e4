package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Manager handles session lifecycle over HTTP cookie transport.
type Manager struct {
	store  Store
	config Config
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the session persistence backend.
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithConfig replaces the default session configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// New creates a session manager. Without WithStore it falls back to an
// in-memory store.
func New(opts ...Option) *Manager {
	m := &Manager{config: DefaultConfig()}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	return m
}

// Ensure returns the request's session, creating an anonymous one when the
// cookie is missing, stale or expired.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if session, err := m.Get(ctx, r); err == nil {
		return session, nil
	}

	session, err := m.create(ctx, nil)
	if err != nil {
		return nil, err
	}
	m.setCookie(w, session.Token, m.config.AnonymousTTL)
	return session, nil
}

// Get retrieves the existing session for the request, if any.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrSessionNotFound
	}

	session, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Authenticate binds the session to an account. The session token is rotated
// so a pre-authentication token can never identify an authenticated session.
// Flow state in Data survives the rotation.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID uuid.UUID) (*Session, error) {
	session, err := m.Get(ctx, r)
	if err != nil {
		session, err = m.create(ctx, &accountID)
		if err != nil {
			return nil, err
		}
		m.setCookie(w, session.Token, m.config.TTL)
		return session, nil
	}

	newToken, err := generateToken()
	if err != nil {
		return nil, err
	}
	_ = m.store.Delete(ctx, session.Token)

	session.Token = newToken
	session.AccountID = &accountID
	session.ExpiresAt = time.Now().Add(m.config.TTL)
	session.Touch()

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	m.setCookie(w, session.Token, m.config.TTL)
	return session, nil
}

// Destroy deletes the session and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
		_ = m.store.Delete(ctx, cookie.Value)
	}
	m.clearCookie(w)
	return nil
}

// Save persists mutated session state.
func (m *Manager) Save(ctx context.Context, session *Session) error {
	session.Touch()
	return m.store.Update(ctx, session)
}

func (m *Manager) create(ctx context.Context, accountID *uuid.UUID) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := NewSession(token, accountID, m.config.ttlFor(accountID != nil))
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
