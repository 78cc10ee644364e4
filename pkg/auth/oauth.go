package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ProviderAdapter hides provider-specific OAuth mechanics behind the three
// primitives the core needs. Implementations own the oauth2.Config, the code
// exchange and the profile endpoints; the authorization redirect dance itself
// happens in the user's browser and is out of scope here.
type ProviderAdapter interface {
	// Kind returns the method kind this adapter authenticates, e.g.
	// MethodGoogle.
	Kind() MethodKind

	// AuthURL builds the provider authorization URL carrying the given
	// CSRF state token.
	AuthURL(state string) (string, error)

	// ResolveProfile exchanges an authorization code and returns the
	// normalized profile. Exchange failures map to ErrInvalidCode.
	ResolveProfile(ctx context.Context, code string) (ProviderProfile, error)
}

// OAuthService fronts one provider adapter: it issues single-use CSRF state
// for the outbound redirect and funnels callbacks into the association flow.
type OAuthService struct {
	storage  Storage
	adapter  ProviderAdapter
	assoc    *AssociationService
	stateTTL time.Duration
	logger   *slog.Logger
}

// OAuthOption configures an OAuthService.
type OAuthOption func(*OAuthService)

// WithOAuthLogger sets a custom logger for the service.
func WithOAuthLogger(l *slog.Logger) OAuthOption {
	return func(s *OAuthService) {
		s.logger = l
	}
}

// WithStateTTL sets the lifetime of CSRF state tokens.
func WithStateTTL(ttl time.Duration) OAuthOption {
	return func(s *OAuthService) {
		s.stateTTL = ttl
	}
}

// NewOAuthService creates an OAuth front for one provider adapter.
func NewOAuthService(storage Storage, adapter ProviderAdapter, assoc *AssociationService, opts ...OAuthOption) *OAuthService {
	s := &OAuthService{
		storage:  storage,
		adapter:  adapter,
		assoc:    assoc,
		stateTTL: 10 * time.Minute,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the method kind of the underlying adapter.
func (s *OAuthService) Kind() MethodKind {
	return s.adapter.Kind()
}

// BeginAuth stores a fresh single-use state token and returns the provider
// authorization URL to redirect the caller to.
func (s *OAuthService) BeginAuth(ctx context.Context) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	if err := s.storage.StoreOAuthState(ctx, state, time.Now().Add(s.stateTTL)); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	url, err := s.adapter.AuthURL(state)
	if err != nil {
		return "", fmt.Errorf("failed to build auth url: %w", err)
	}
	return url, nil
}

// HandleCallback validates the state, resolves the provider profile and runs
// the association decision sequence. linkToken carries the session-bound
// linking credential when the callback completes a linking flow, or "" for a
// plain sign-in.
func (s *OAuthService) HandleCallback(ctx context.Context, code, state, linkToken string) (*Account, error) {
	// One-time state consumption; a replayed or fabricated state dies here.
	if err := s.storage.ConsumeOAuthState(ctx, state); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to validate state: %w", err)
	}

	profile, err := s.adapter.ResolveProfile(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to resolve provider profile: %w", err)
	}

	return s.assoc.Associate(ctx, s.adapter.Kind(), profile, linkToken)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
