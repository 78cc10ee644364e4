package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/sanitizer"
	"github.com/mindflowhq/identity/pkg/validator"
)

// Registry owns the mapping of accounts to their authentication methods.
// It enforces the two uniqueness invariants (one account per external
// subject, one method kind per account) and the floor of at least one active
// method per account.
type Registry struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets a custom logger for the registry.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRegistryClock overrides the time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an identity registry over the given storage.
func NewRegistry(storage Storage, opts ...RegistryOption) *Registry {
	r := &Registry{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindAccountByMethod resolves the account owning an active (kind, subject)
// method, or ErrAccountNotFound.
func (r *Registry) FindAccountByMethod(ctx context.Context, kind MethodKind, subject string) (*Account, error) {
	method, err := r.storage.GetMethodBySubject(ctx, kind, subject)
	if err != nil {
		if errors.Is(err, ErrMethodNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up method: %w", err)
	}
	account, err := r.storage.GetAccountByID(ctx, method.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account for method: %w", err)
	}
	return account, nil
}

// FindAccountByEmail resolves an account by its normalized email address.
func (r *Registry) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return r.storage.GetAccountByEmail(ctx, sanitizer.NormalizeEmail(email))
}

// CreateAccount creates a new account for the given email. Returns
// ErrDuplicateEmail if an account with the normalized email already exists.
func (r *Registry) CreateAccount(ctx context.Context, email string) (*Account, error) {
	return r.createAccount(ctx, r.storage, email)
}

func (r *Registry) createAccount(ctx context.Context, s Storage, email string) (*Account, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
	); err != nil {
		return nil, ErrInvalidEmail
	}

	account := &Account{
		ID:        uuid.New(),
		Email:     email,
		IsActive:  true,
		CreatedAt: r.now(),
	}
	if err := s.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Info("account created",
		logger.AccountID(account.ID.String()),
		logger.Email(account.Email),
		logger.Component("registry"),
	)
	return account, nil
}

// AttachMethod attaches a method to an account. Idempotent for the identical
// (account, kind, subject) triple, in which case it refreshes the last-used
// timestamp and returns the existing record. Returns ErrMethodAlreadyClaimed
// when the subject belongs to a different account and ErrMethodAlreadyPresent
// when the account already carries the kind with another subject.
func (r *Registry) AttachMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind, subject string) (*AuthMethod, error) {
	var attached *AuthMethod
	err := r.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		m, err := r.attachMethod(ctx, tx, accountID, kind, subject)
		if err != nil {
			return err
		}
		attached = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attached, nil
}

func (r *Registry) attachMethod(ctx context.Context, s Storage, accountID uuid.UUID, kind MethodKind, subject string) (*AuthMethod, error) {
	now := r.now()

	if subject != "" {
		claimed, err := s.GetMethodBySubject(ctx, kind, subject)
		switch {
		case err == nil && claimed.AccountID != accountID:
			return nil, ErrMethodAlreadyClaimed
		case err == nil:
			// Identical triple already attached: refresh and return.
			if err := s.TouchMethod(ctx, accountID, kind, now); err != nil {
				return nil, fmt.Errorf("failed to update method usage: %w", err)
			}
			claimed.LastUsedAt = &now
			return claimed, nil
		case !errors.Is(err, ErrMethodNotFound):
			return nil, fmt.Errorf("failed to check subject claim: %w", err)
		}
	}

	existing, err := s.GetMethod(ctx, accountID, kind)
	switch {
	case err == nil && existing.Subject == subject:
		if err := s.TouchMethod(ctx, accountID, kind, now); err != nil {
			return nil, fmt.Errorf("failed to update method usage: %w", err)
		}
		existing.LastUsedAt = &now
		return existing, nil
	case err == nil:
		return nil, ErrMethodAlreadyPresent
	case !errors.Is(err, ErrMethodNotFound):
		return nil, fmt.Errorf("failed to check existing method: %w", err)
	}

	method := &AuthMethod{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Subject:   subject,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.CreateMethod(ctx, method); err != nil {
		// Unique constraints double as the concurrency control: a racing
		// attach surfaces here instead of behind a lock.
		if errors.Is(err, ErrMethodAlreadyClaimed) || errors.Is(err, ErrMethodAlreadyPresent) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to attach method: %w", err)
	}

	r.logger.Info("auth method attached",
		logger.AccountID(accountID.String()),
		slog.String("method", string(kind)),
		logger.Component("registry"),
	)
	return method, nil
}

// CreateAccountWithMethod creates an account and attaches its first method in
// a single transaction, so a half-created account is never observable.
func (r *Registry) CreateAccountWithMethod(ctx context.Context, email string, kind MethodKind, subject string) (*Account, error) {
	var account *Account
	err := r.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		a, err := r.createAccount(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, err := r.attachMethod(ctx, tx, a.ID, kind, subject); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DetachMethod deactivates a method. Rejected with ErrLastMethod when the
// method is the account's only active one, so every account stays reachable
// through at least one way of signing in. Outstanding link tokens for the
// pair die with the method.
func (r *Registry) DetachMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind) error {
	err := r.storage.WithinTx(ctx, func(ctx context.Context, tx Storage) error {
		if _, err := tx.GetMethod(ctx, accountID, kind); err != nil {
			return err
		}

		n, err := tx.CountActiveMethods(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to count active methods: %w", err)
		}
		if n <= 1 {
			return ErrLastMethod
		}

		if err := tx.DeactivateMethod(ctx, accountID, kind); err != nil {
			return fmt.Errorf("failed to deactivate method: %w", err)
		}
		return tx.VoidLinkTokens(ctx, accountID, kind)
	})
	if err != nil {
		return err
	}

	r.logger.Info("auth method detached",
		logger.AccountID(accountID.String()),
		slog.String("method", string(kind)),
		logger.Component("registry"),
	)
	return nil
}

// ListMethods returns the account's methods, active and historical, for the
// account-settings view.
func (r *Registry) ListMethods(ctx context.Context, accountID uuid.UUID) ([]AuthMethod, error) {
	return r.storage.ListMethods(ctx, accountID)
}

// MarkMethodUsed refreshes the last-used timestamp after a successful
// sign-in with the given method.
func (r *Registry) MarkMethodUsed(ctx context.Context, accountID uuid.UUID, kind MethodKind) error {
	return r.storage.TouchMethod(ctx, accountID, kind, r.now())
}

// HasMethod reports whether the account has an active method of the kind.
func (r *Registry) HasMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind) (bool, error) {
	_, err := r.storage.GetMethod(ctx, accountID, kind)
	if err != nil {
		if errors.Is(err, ErrMethodNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
