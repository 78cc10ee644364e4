package auth_test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflowhq/identity/pkg/auth"
)

type passwordFixture struct {
	storage  *fakeStorage
	registry *auth.Registry
	tokens   *auth.TokenStore
	linking  *auth.LinkingService
	svc      *auth.PasswordService
}

func newPasswordFixture() *passwordFixture {
	storage := newFakeStorage()
	registry := auth.NewRegistry(storage)
	tokens := auth.NewTokenStore(storage)
	return &passwordFixture{
		storage:  storage,
		registry: registry,
		tokens:   tokens,
		linking:  auth.NewLinkingService(registry, tokens),
		svc:      auth.NewPasswordService(registry, tokens, auth.WithBcryptCost(bcrypt.MinCost)),
	}
}

func (f *passwordFixture) accountWithPassword(t *testing.T, email, password string) *auth.Account {
	t.Helper()
	account, err := f.registry.CreateAccountWithMethod(context.Background(), email, auth.MethodMagicLink, "")
	require.NoError(t, err)

	value, err := f.linking.Begin(context.Background(), account.ID, auth.MethodPassword)
	require.NoError(t, err)

	_, err = f.svc.Attach(context.Background(), value, password)
	require.NoError(t, err)
	return account
}

func TestPasswordService_Attach(t *testing.T) {
	t.Parallel()

	t.Run("attaches under a link token", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		account := f.accountWithPassword(t, "user@example.com", "correct horse battery")

		has, err := f.registry.HasMethod(context.Background(), account.ID, auth.MethodPassword)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("rejects short password before burning the token", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		account, err := f.registry.CreateAccountWithMethod(context.Background(), "user@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		value, err := f.linking.Begin(context.Background(), account.ID, auth.MethodPassword)
		require.NoError(t, err)

		_, err = f.svc.Attach(context.Background(), value, "short")
		require.Error(t, err)

		// The token survives the validation failure and still works.
		_, err = f.svc.Attach(context.Background(), value, "long enough password")
		require.NoError(t, err)
	})

	t.Run("rejects token of another kind", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		account, err := f.registry.CreateAccountWithMethod(context.Background(), "user@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		value, err := f.tokens.Issue(context.Background(), account.ID, auth.MethodGoogle, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Attach(context.Background(), value, "long enough password")
		require.ErrorIs(t, err, auth.ErrLinkingTokenInvalid)
	})

	t.Run("rejects forged token", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		_, err := f.svc.Attach(context.Background(), "forged", "long enough password")
		require.ErrorIs(t, err, auth.ErrLinkingTokenInvalid)
	})
}

func TestPasswordService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		created := f.accountWithPassword(t, "user@example.com", "correct horse battery")

		account, err := f.svc.Authenticate(context.Background(), "User@Example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, created.ID, account.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		f.accountWithPassword(t, "user@example.com", "correct horse battery")

		_, err := f.svc.Authenticate(context.Background(), "user@example.com", "wrong")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		_, err := f.svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("detached password method stops working", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		account := f.accountWithPassword(t, "user@example.com", "correct horse battery")

		require.NoError(t, f.registry.DetachMethod(context.Background(), account.ID, auth.MethodPassword))

		// The hash row still exists, but the detached method must refuse the
		// sign-in indistinguishably from a bad password.
		_, err := f.svc.Authenticate(context.Background(), "user@example.com", "correct horse battery")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("marks method used", func(t *testing.T) {
		t.Parallel()

		f := newPasswordFixture()
		account := f.accountWithPassword(t, "user@example.com", "correct horse battery")

		_, err := f.svc.Authenticate(context.Background(), "user@example.com", "correct horse battery")
		require.NoError(t, err)

		methods, err := f.registry.ListMethods(context.Background(), account.ID)
		require.NoError(t, err)
		for _, m := range methods {
			if m.Kind == auth.MethodPassword {
				assert.NotNil(t, m.LastUsedAt)
			}
		}
	})
}
