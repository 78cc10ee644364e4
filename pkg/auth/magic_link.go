package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/ratelimit"
	"github.com/mindflowhq/identity/pkg/sanitizer"
	"github.com/mindflowhq/identity/pkg/token"
	"github.com/mindflowhq/identity/pkg/validator"
)

// MagicLinkSender delivers a magic-link email. The link is an absolute URL
// embedding the plaintext token value; implementations must not log it.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, email, link string, expiresAt time.Time) error
}

// RateLimiter is the subset of pkg/ratelimit consumed by the flows.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

// MagicLinkService implements passwordless sign-in. Requesting a link never
// reveals whether an account exists; redeeming goes through the single-use
// token store.
type MagicLinkService struct {
	registry *Registry
	tokens   *TokenStore
	sender   MagicLinkSender

	emailLimiter  RateLimiter
	originLimiter RateLimiter

	baseURL    string
	verifyPath string
	ttl        time.Duration
	logger     *slog.Logger
}

// MagicLinkOption configures a MagicLinkService.
type MagicLinkOption func(*MagicLinkService)

// WithMagicLinkLogger sets a custom logger for the service.
func WithMagicLinkLogger(l *slog.Logger) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.logger = l
	}
}

// WithMagicLinkTTL sets the lifetime of issued magic-link tokens.
func WithMagicLinkTTL(ttl time.Duration) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.ttl = ttl
	}
}

// WithMagicLinkVerifyPath overrides the path embedded in magic-link URLs.
func WithMagicLinkVerifyPath(path string) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.verifyPath = path
	}
}

// WithEmailLimiter bounds issuance per target email. Looser than the origin
// limit so legitimate retries are tolerated.
func WithEmailLimiter(l RateLimiter) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.emailLimiter = l
	}
}

// WithOriginLimiter bounds issuance per requesting network origin. Tighter
// than the email limit to slow distributed abuse.
func WithOriginLimiter(l RateLimiter) MagicLinkOption {
	return func(s *MagicLinkService) {
		s.originLimiter = l
	}
}

// NewMagicLinkService creates a passwordless sign-in service. baseURL is the
// externally reachable origin of the service, e.g. "https://app.example.com".
func NewMagicLinkService(registry *Registry, tokens *TokenStore, sender MagicLinkSender, baseURL string, opts ...MagicLinkOption) *MagicLinkService {
	s := &MagicLinkService{
		registry:   registry,
		tokens:     tokens,
		sender:     sender,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		verifyPath: "/account/auth/magic/verify",
		ttl:        1 * time.Hour,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request issues a magic link for the given email and hands it to the email
// sender. The visible outcome is identical whether the account exists, has
// been rate limited, or received a link: callers always render the same
// "check your email" response. Only transport and storage failures surface.
func (s *MagicLinkService) Request(ctx context.Context, email, origin string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
	); err != nil {
		return ErrInvalidEmail
	}

	if err := s.checkRate(ctx, email, origin); err != nil {
		if errors.Is(err, ErrRateLimited) {
			// Deliberately indistinguishable from success; nothing is issued.
			s.logger.Warn("magic link request rate limited",
				logger.Email(email),
				slog.String("origin", origin),
				logger.Component("magic_link"),
			)
			return nil
		}
		return err
	}

	account, err := s.registry.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Keep the work profile of the success path so response timing
			// does not become an account-existence oracle.
			_, _ = token.New()
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	value, err := s.tokens.Issue(ctx, account.ID, MethodMagicLink, s.ttl)
	if err != nil {
		return fmt.Errorf("failed to issue magic link token: %w", err)
	}

	expiresAt := time.Now().Add(s.ttl)
	if err := s.sender.SendMagicLink(ctx, account.Email, s.linkURL(value), expiresAt); err != nil {
		// An issued-but-unsent token must not stay live.
		if voidErr := s.tokens.Void(ctx, value); voidErr != nil {
			s.logger.Error("failed to void undelivered magic link token",
				logger.AccountID(account.ID.String()),
				logger.Error(voidErr),
				logger.Component("magic_link"),
			)
		}
		return fmt.Errorf("failed to send magic link: %w", err)
	}

	return nil
}

// Redeem consumes a magic-link token and returns the authenticated account.
// Expired, consumed, forged and linking-flavored tokens are all reported as
// ErrTokenNotRedeemable.
func (s *MagicLinkService) Redeem(ctx context.Context, value string) (*Account, error) {
	accountID, kind, err := s.tokens.Redeem(ctx, value)
	if err != nil {
		return nil, ErrTokenNotRedeemable
	}
	if kind != MethodMagicLink {
		// A linking token must not establish a session through this entry
		// point; treat it as if it never existed.
		return nil, ErrTokenNotRedeemable
	}

	// First successful redemption attaches the method; later ones refresh
	// its last-used timestamp.
	if _, err := s.registry.AttachMethod(ctx, accountID, MethodMagicLink, ""); err != nil {
		return nil, fmt.Errorf("failed to record magic link method: %w", err)
	}

	account, err := s.registry.storage.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	s.logger.Info("magic link sign-in",
		logger.AccountID(account.ID.String()),
		logger.Component("magic_link"),
	)
	return account, nil
}

func (s *MagicLinkService) checkRate(ctx context.Context, email, origin string) error {
	if s.originLimiter != nil && origin != "" {
		res, err := s.originLimiter.Allow(ctx, "magic_link:origin:"+origin)
		if err != nil {
			// Counters are an availability tradeoff, not a security boundary:
			// a broken limiter store fails open.
			s.logger.Error("origin rate limiter unavailable", logger.Error(err), logger.Component("magic_link"))
		} else if !res.Allowed {
			return ErrRateLimited
		}
	}
	if s.emailLimiter != nil {
		res, err := s.emailLimiter.Allow(ctx, "magic_link:email:"+email)
		if err != nil {
			s.logger.Error("email rate limiter unavailable", logger.Error(err), logger.Component("magic_link"))
		} else if !res.Allowed {
			return ErrRateLimited
		}
	}
	return nil
}

func (s *MagicLinkService) linkURL(value string) string {
	return s.baseURL + s.verifyPath + "?token=" + url.QueryEscape(value)
}
