package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/sanitizer"
)

// AssociationService reconciles an externally authenticated identity with a
// local account. The decision sequence is a fixed list of typed calls, in
// this order:
//
//  1. subject already linked        -> sign in as that account
//  2. session carries a link token  -> attach to the token's account
//  3. email matches an account      -> refuse automatic association
//  4. otherwise                     -> create account + attach, one tx
//
// Step 3 is the takeover guard: an unauthenticated OAuth callback whose email
// claim matches an existing account must never graft itself onto it.
type AssociationService struct {
	registry     *Registry
	tokens       *TokenStore
	verifiedOnly bool
	logger       *slog.Logger
}

// AssociationOption configures an AssociationService.
type AssociationOption func(*AssociationService)

// WithAssociationLogger sets a custom logger for the service.
func WithAssociationLogger(l *slog.Logger) AssociationOption {
	return func(s *AssociationService) {
		s.logger = l
	}
}

// WithVerifiedOnly controls whether unverified provider email claims are
// acceptable for account creation. Enabled by default; disabling it is only
// sensible against providers that never set the verified flag.
func WithVerifiedOnly(verifiedOnly bool) AssociationOption {
	return func(s *AssociationService) {
		s.verifiedOnly = verifiedOnly
	}
}

// NewAssociationService creates the external-provider association flow.
func NewAssociationService(registry *Registry, tokens *TokenStore, opts ...AssociationOption) *AssociationService {
	s := &AssociationService{
		registry:     registry,
		tokens:       tokens,
		verifiedOnly: true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Associate runs the decision sequence for a provider callback and returns
// the account the caller's session must be authenticated as. The returned
// account is authoritative: during a linking flow it is the link token's
// bound account, regardless of who is signed in at callback time.
func (s *AssociationService) Associate(ctx context.Context, kind MethodKind, profile ProviderProfile, linkToken string) (*Account, error) {
	if profile.Subject == "" {
		return nil, ErrInvalidProfile
	}
	profile.Email = sanitizer.NormalizeEmail(profile.Email)

	// Step 1: the subject is already linked. Identity is anchored to the
	// provider subject once linked; an email claim mismatch is ignored.
	account, err := s.registry.FindAccountByMethod(ctx, kind, profile.Subject)
	if err == nil {
		if err := s.registry.MarkMethodUsed(ctx, account.ID, kind); err != nil {
			s.logger.Error("failed to update method usage",
				logger.AccountID(account.ID.String()),
				logger.Error(err),
				logger.Component("associate"),
			)
		}
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check provider link: %w", err)
	}

	// Step 2: an authenticated user initiated this callback as a linking
	// request. The token decides the target account; the session does not.
	if linkToken != "" {
		return s.completeLinking(ctx, kind, profile, linkToken)
	}

	// Steps 3 and 4 create or refuse based on the email claim, so the claim
	// must exist and be verifiable.
	if profile.Email == "" || (s.verifiedOnly && !profile.EmailVerified) {
		return nil, ErrEmailClaimMissing
	}

	account, err = s.createForProfile(ctx, kind, profile)
	if err == nil {
		return account, nil
	}
	if errors.Is(err, ErrDuplicateEmail) {
		// Lost a create race: the winning request may have linked this very
		// subject, so re-run step 1 before giving up.
		if account, retryErr := s.registry.FindAccountByMethod(ctx, kind, profile.Subject); retryErr == nil {
			return account, nil
		}
		return nil, ErrSignInToLink
	}
	return nil, err
}

func (s *AssociationService) completeLinking(ctx context.Context, kind MethodKind, profile ProviderProfile, linkToken string) (*Account, error) {
	accountID, tokenKind, err := s.tokens.Redeem(ctx, linkToken)
	if err != nil {
		return nil, ErrLinkingTokenInvalid
	}
	if tokenKind != kind {
		// Token issued for a different provider; do not attach anything.
		return nil, ErrLinkingTokenInvalid
	}

	if _, err := s.registry.AttachMethod(ctx, accountID, kind, profile.Subject); err != nil {
		switch {
		case errors.Is(err, ErrMethodAlreadyClaimed), errors.Is(err, ErrMethodAlreadyPresent):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to attach linked method: %w", err)
		}
	}

	account, err := s.registry.storage.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked account: %w", err)
	}

	s.logger.Info("auth method linked via link token",
		logger.AccountID(account.ID.String()),
		slog.String("method", string(kind)),
		logger.Component("associate"),
	)
	return account, nil
}

func (s *AssociationService) createForProfile(ctx context.Context, kind MethodKind, profile ProviderProfile) (*Account, error) {
	// Step 3: the email belongs to an existing account. Automatic
	// association from an unauthenticated callback is disallowed.
	_, err := s.registry.FindAccountByEmail(ctx, profile.Email)
	if err == nil {
		return nil, ErrSignInToLink
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}

	// Step 4: fresh identity, one transaction.
	account, err := s.registry.CreateAccountWithMethod(ctx, profile.Email, kind, profile.Subject)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created from provider sign-in",
		logger.AccountID(account.ID.String()),
		slog.String("method", string(kind)),
		logger.Component("associate"),
	)
	return account, nil
}
