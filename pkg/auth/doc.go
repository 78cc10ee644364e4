// Package auth implements the multi-provider identity linking core: one
// account reachable through several authentication methods (password, Google,
// LinkedIn, magic link) without account takeover, duplicate accounts or token
// replay.
//
// # Components
//
//   - TokenStore issues and redeems single-use, hash-at-rest credentials
//     (magic-link and account-linking tokens). Redemption is one conditional
//     update, so concurrent redemptions of the same value yield exactly one
//     winner, and all failure modes collapse into ErrTokenNotRedeemable.
//   - Registry maps accounts to methods and enforces the invariants: an
//     external subject belongs to at most one account, an account carries a
//     method kind at most once, and an account never drops to zero active
//     methods.
//   - MagicLinkService implements passwordless sign-in with constant
//     visible behavior regardless of account existence or rate limiting.
//   - AssociationService runs the fixed decision sequence for provider
//     callbacks: linked-subject sign-in, link-token attach, refuse
//     email-match grafting, or create-and-attach in one transaction.
//   - LinkingService starts the two-phase linking flow for authenticated
//     users; the issued token's bound account, not the session at callback
//     time, decides where the new method is attached.
//   - PasswordService attaches and verifies the password method.
//
// # Wiring
//
// Storage is a consumer-side interface; store/postgres provides the pgx
// implementation. Each service takes functional options and defaults to a
// discarding slog logger:
//
//	registry := auth.NewRegistry(storage)
//	tokens := auth.NewTokenStore(storage)
//	assoc := auth.NewAssociationService(registry, tokens)
//	google := auth.NewOAuthService(storage, auth.NewGoogleAdapter(googleCfg), assoc)
//	magic := auth.NewMagicLinkService(registry, tokens, mailer, cfg.BaseURL,
//		auth.WithEmailLimiter(emailLimiter),
//		auth.WithOriginLimiter(originLimiter),
//	)
//
// # Error policy
//
// Security-sensitive failures (bad token, unclaimed email, rate limited) are
// flattened so callers can render one generic message; self-management
// failures (ErrLastMethod, ErrMethodAlreadyPresent) stay specific because the
// authenticated owner already knows their own state.
package auth
