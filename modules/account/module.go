// Package account exposes the identity flows over HTTP. Handlers are thin:
// they translate requests into core service calls, establish sessions, and
// render errors under the propagation policy (security-sensitive failures
// collapse into one generic message; self-management errors reach the
// authenticated owner verbatim).
package account

import (
	"io"
	"log/slog"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/session"
	"github.com/mindflowhq/identity/pkg/turnstile"
)

// Module bundles the core services the HTTP surface dispatches to.
type Module struct {
	registry  *auth.Registry
	magic     *auth.MagicLinkService
	password  *auth.PasswordService
	linking   *auth.LinkingService
	providers map[auth.MethodKind]*auth.OAuthService
	sessions  *session.Manager
	captcha   *turnstile.Verifier
	logger    *slog.Logger
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithLogger sets a custom logger for the module.
func WithLogger(l *slog.Logger) ModuleOption {
	return func(m *Module) {
		m.logger = l
	}
}

// WithPassword enables the password sign-in and attach endpoints.
func WithPassword(svc *auth.PasswordService) ModuleOption {
	return func(m *Module) {
		m.password = svc
	}
}

// WithProvider registers an OAuth provider endpoint pair.
func WithProvider(svc *auth.OAuthService) ModuleOption {
	return func(m *Module) {
		m.providers[svc.Kind()] = svc
	}
}

// WithTurnstile enables challenge verification on the magic-link request
// endpoint.
func WithTurnstile(v *turnstile.Verifier) ModuleOption {
	return func(m *Module) {
		m.captcha = v
	}
}

// New creates the account module.
func New(registry *auth.Registry, magic *auth.MagicLinkService, linking *auth.LinkingService, sessions *session.Manager, opts ...ModuleOption) *Module {
	m := &Module{
		registry:  registry,
		magic:     magic,
		linking:   linking,
		sessions:  sessions,
		providers: make(map[auth.MethodKind]*auth.OAuthService),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
