package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/token"
)

// TokenStore issues and redeems the single-use credentials backing magic
// links and account-linking handshakes. Values are 32 random bytes; only
// their SHA-256 digest reaches storage, and the plaintext is never logged.
type TokenStore struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithTokenStoreLogger sets a custom logger for the store.
func WithTokenStoreLogger(l *slog.Logger) TokenStoreOption {
	return func(s *TokenStore) {
		s.logger = l
	}
}

// WithTokenStoreClock overrides the time source, used by tests to exercise
// expiry without sleeping.
func WithTokenStoreClock(now func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		s.now = now
	}
}

// NewTokenStore creates a token store over the given storage.
func NewTokenStore(storage Storage, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a token bound to (accountID, kind) expiring after ttl and
// returns its plaintext value exactly once. Any unconsumed token previously
// issued for the same pair becomes unredeemable in the same transaction,
// bounding the replay surface to a single outstanding token per pair.
func (s *TokenStore) Issue(ctx context.Context, accountID uuid.UUID, kind MethodKind, ttl time.Duration) (string, error) {
	value, err := token.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate token value: %w", err)
	}

	now := s.now()
	row := &LinkToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Hash:      token.Hash(value),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	err = s.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		if err := tx.VoidLinkTokens(ctx, accountID, kind); err != nil {
			return fmt.Errorf("failed to void outstanding tokens: %w", err)
		}
		if err := tx.CreateLinkToken(ctx, row); err != nil {
			return fmt.Errorf("failed to persist token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("link token issued",
		logger.AccountID(accountID.String()),
		slog.String("method", string(kind)),
		slog.Time("expires_at", row.ExpiresAt),
		logger.Component("token_store"),
	)

	return value, nil
}

// Redeem consumes a token value and returns the account and method kind it
// was bound to. Exactly one of any number of concurrent redemptions succeeds;
// every failure mode (unknown, expired, already consumed) collapses into
// ErrTokenNotRedeemable so the interface is not a token oracle.
func (s *TokenStore) Redeem(ctx context.Context, value string) (uuid.UUID, MethodKind, error) {
	row, err := s.storage.ConsumeLinkToken(ctx, token.Hash(value), s.now())
	if err != nil {
		return uuid.Nil, "", ErrTokenNotRedeemable
	}

	s.logger.Info("link token redeemed",
		logger.AccountID(row.AccountID.String()),
		slog.String("method", string(row.Kind)),
		logger.Component("token_store"),
	)

	return row.AccountID, row.Kind, nil
}

// Void makes a previously issued token unredeemable, identified by its
// plaintext value. Used to invalidate a magic-link token whose delivery
// failed; a token that was never sent must not remain live.
func (s *TokenStore) Void(ctx context.Context, value string) error {
	return s.storage.VoidLinkTokenByHash(ctx, token.Hash(value))
}
