package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/logger"
)

// LinkingService starts the two-phase flow that lets an authenticated user
// attach a new method to their own account. Phase 1 issues a session-bound
// link token; phase 2 is the provider callback, where AssociationService
// redeems the token. The token value travels only inside the caller's
// session, never in a URL parameter the provider callback controls, and the
// token's bound account, not the session's current one, decides where the
// method lands.
type LinkingService struct {
	registry *Registry
	tokens   *TokenStore
	ttl      time.Duration
	logger   *slog.Logger
}

// LinkingOption configures a LinkingService.
type LinkingOption func(*LinkingService)

// WithLinkingLogger sets a custom logger for the service.
func WithLinkingLogger(l *slog.Logger) LinkingOption {
	return func(s *LinkingService) {
		s.logger = l
	}
}

// WithLinkingTTL sets the lifetime of link tokens. The window only needs to
// cover one provider round-trip, so the default is short.
func WithLinkingTTL(ttl time.Duration) LinkingOption {
	return func(s *LinkingService) {
		s.ttl = ttl
	}
}

// NewLinkingService creates the account-linking flow.
func NewLinkingService(registry *Registry, tokens *TokenStore, opts ...LinkingOption) *LinkingService {
	s := &LinkingService{
		registry: registry,
		tokens:   tokens,
		ttl:      15 * time.Minute,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin issues a link token bound to (accountID, kind). The caller must have
// verified that accountID is the currently authenticated session's account,
// and must stash the returned value in that session. Re-issuing supersedes
// any earlier outstanding token for the same pair.
func (s *LinkingService) Begin(ctx context.Context, accountID uuid.UUID, kind MethodKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unsupported method kind %q", ErrMethodNotFound, kind)
	}

	already, err := s.registry.HasMethod(ctx, accountID, kind)
	if err != nil {
		return "", fmt.Errorf("failed to check existing method: %w", err)
	}
	if already {
		return "", ErrMethodAlreadyPresent
	}

	value, err := s.tokens.Issue(ctx, accountID, kind, s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to issue linking token: %w", err)
	}

	s.logger.Info("linking flow started",
		logger.AccountID(accountID.String()),
		slog.String("method", string(kind)),
		logger.Component("linking"),
	)
	return value, nil
}
