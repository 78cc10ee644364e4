package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/sanitizer"
	"github.com/mindflowhq/identity/pkg/validator"
)

// PasswordService manages the password method: attaching it under a
// session-bound link token and verifying credentials at sign-in.
type PasswordService struct {
	registry   *Registry
	tokens     *TokenStore
	bcryptCost int
	logger     *slog.Logger
}

// PasswordOption configures a PasswordService.
type PasswordOption func(*PasswordService)

// WithPasswordLogger sets a custom logger for the service.
func WithPasswordLogger(l *slog.Logger) PasswordOption {
	return func(s *PasswordService) {
		s.logger = l
	}
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) PasswordOption {
	return func(s *PasswordService) {
		s.bcryptCost = cost
	}
}

// NewPasswordService creates a password method service.
func NewPasswordService(registry *Registry, tokens *TokenStore, opts ...PasswordOption) *PasswordService {
	s := &PasswordService{
		registry:   registry,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach sets a password for the link token's bound account and attaches the
// password method, both inside one transaction. The token comes from
// LinkingService.Begin with kind MethodPassword.
func (s *PasswordService) Attach(ctx context.Context, linkToken, password string) (*Account, error) {
	if err := validator.Apply(
		validator.MinLen("password", password, 8),
		validator.MaxLen("password", password, 128),
	); err != nil {
		return nil, err
	}

	accountID, kind, err := s.tokens.Redeem(ctx, linkToken)
	if err != nil || kind != MethodPassword {
		return nil, ErrLinkingTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.registry.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		if err := tx.StorePasswordHash(ctx, accountID, hash); err != nil {
			return fmt.Errorf("failed to store password hash: %w", err)
		}
		_, err := s.registry.attachMethod(ctx, tx, accountID, MethodPassword, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	account, err := s.registry.storage.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	s.logger.Info("password method attached",
		logger.AccountID(account.ID.String()),
		logger.Component("password"),
	)
	return account, nil
}

// Authenticate verifies an email/password pair. Every failure (unknown
// email, wrong password, or an account whose password method was unlinked)
// is reported as ErrInvalidCredentials to keep the endpoint enumeration-free.
func (s *PasswordService) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = sanitizer.NormalizeEmail(email)

	account, err := s.registry.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong
			// passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	// A detached password method must stop working even while the hash row
	// still exists.
	enabled, err := s.registry.HasMethod(ctx, account.ID, MethodPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to check password method: %w", err)
	}
	if !enabled {
		s.logger.Warn("password sign-in attempt without linked password method",
			logger.AccountID(account.ID.String()),
			logger.Component("password"),
		)
		return nil, ErrInvalidCredentials
	}

	hash, err := s.registry.storage.GetPasswordHash(ctx, account.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.registry.MarkMethodUsed(ctx, account.ID, MethodPassword); err != nil {
		s.logger.Error("failed to update method usage",
			logger.AccountID(account.ID.String()),
			logger.Error(err),
			logger.Component("password"),
		)
	}

	return account, nil
}

// dummyHash keeps the not-found path of Authenticate on the same bcrypt cost
// as a real comparison. Generated once; the plaintext is irrelevant.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
