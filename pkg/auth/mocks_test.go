package auth_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/ratelimit"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMagicLink(ctx context.Context, email, link string, expiresAt time.Time) error {
	args := m.Called(ctx, email, link, expiresAt)
	return args.Error(0)
}

// stubLimiter returns a fixed allow/deny decision or a backend error.
type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *stubLimiter) Allow(_ context.Context, _ string) (*ratelimit.Result, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &ratelimit.Result{Allowed: l.allowed, Limit: 1}, nil
}

// stubAdapter is a canned ProviderAdapter for OAuth service tests.
type stubAdapter struct {
	kind       auth.MethodKind
	profile    auth.ProviderProfile
	resolveErr error
}

func (a *stubAdapter) Kind() auth.MethodKind {
	return a.kind
}

func (a *stubAdapter) AuthURL(state string) (string, error) {
	return "https://provider.example.com/authorize?state=" + state, nil
}

func (a *stubAdapter) ResolveProfile(_ context.Context, code string) (auth.ProviderProfile, error) {
	if a.resolveErr != nil {
		return auth.ProviderProfile{}, a.resolveErr
	}
	if code == "" {
		return auth.ProviderProfile{}, auth.ErrInvalidCode
	}
	return a.profile, nil
}
