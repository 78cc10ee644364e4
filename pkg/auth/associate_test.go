package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflowhq/identity/pkg/auth"
)

type associateFixture struct {
	storage  *fakeStorage
	registry *auth.Registry
	tokens   *auth.TokenStore
	svc      *auth.AssociationService
}

func newAssociateFixture(opts ...auth.AssociationOption) *associateFixture {
	storage := newFakeStorage()
	registry := auth.NewRegistry(storage)
	tokens := auth.NewTokenStore(storage)
	return &associateFixture{
		storage:  storage,
		registry: registry,
		tokens:   tokens,
		svc:      auth.NewAssociationService(registry, tokens, opts...),
	}
}

func verifiedProfile(subject, email string) auth.ProviderProfile {
	return auth.ProviderProfile{Subject: subject, Email: email, EmailVerified: true}
}

func TestAssociationService_Associate(t *testing.T) {
	t.Parallel()

	t.Run("linked subject signs in regardless of email claim", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		account, err := f.registry.CreateAccountWithMethod(context.Background(), "user@example.com", auth.MethodGoogle, "sub-1")
		require.NoError(t, err)

		// The provider now reports a different email; the subject link wins.
		got, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-1", "changed@example.com"), "")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		methods, err := f.registry.ListMethods(context.Background(), account.ID)
		require.NoError(t, err)
		require.Len(t, methods, 1)
		assert.NotNil(t, methods[0].LastUsedAt)
	})

	t.Run("new subject with fresh email creates an account", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		got, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-new", "new@example.com"), "")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Email)

		has, err := f.registry.HasMethod(context.Background(), got.ID, auth.MethodGoogle)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("email matching an existing account is refused", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		_, err := f.registry.CreateAccount(context.Background(), "taken@example.com")
		require.NoError(t, err)

		_, err = f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-x", "taken@example.com"), "")
		require.ErrorIs(t, err, auth.ErrSignInToLink)

		// No method must have been grafted onto the existing account.
		_, err = f.registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub-x")
		require.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("unverified email claim cannot create an account", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		profile := auth.ProviderProfile{Subject: "sub-u", Email: "user@example.com", EmailVerified: false}
		_, err := f.svc.Associate(context.Background(), auth.MethodGoogle, profile, "")
		require.ErrorIs(t, err, auth.ErrEmailClaimMissing)
	})

	t.Run("missing email claim cannot create an account", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		_, err := f.svc.Associate(context.Background(), auth.MethodGoogle, auth.ProviderProfile{Subject: "sub-e"}, "")
		require.ErrorIs(t, err, auth.ErrEmailClaimMissing)
	})

	t.Run("unverified claims accepted when verified-only is off", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture(auth.WithVerifiedOnly(false))
		profile := auth.ProviderProfile{Subject: "sub-u", Email: "user@example.com", EmailVerified: false}
		got, err := f.svc.Associate(context.Background(), auth.MethodGoogle, profile, "")
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", got.Email)
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		_, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("", "user@example.com"), "")
		require.ErrorIs(t, err, auth.ErrInvalidProfile)
	})
}

func TestAssociationService_Linking(t *testing.T) {
	t.Parallel()

	t.Run("link token decides the target account", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		owner, err := f.registry.CreateAccountWithMethod(context.Background(), "owner@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		linkValue, err := f.tokens.Issue(context.Background(), owner.ID, auth.MethodGoogle, time.Hour)
		require.NoError(t, err)

		// Even with an email claim pointing elsewhere, the method lands on
		// the token's bound account.
		got, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-link", "elsewhere@example.com"), linkValue)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.ID)

		found, err := f.registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub-link")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)
	})

	t.Run("link token is single use", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		owner, err := f.registry.CreateAccountWithMethod(context.Background(), "owner@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		linkValue, err := f.tokens.Issue(context.Background(), owner.ID, auth.MethodGoogle, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-1", "owner@example.com"), linkValue)
		require.NoError(t, err)

		_, err = f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-2", "owner@example.com"), linkValue)
		require.ErrorIs(t, err, auth.ErrLinkingTokenInvalid)
	})

	t.Run("token for another provider is rejected", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		owner, err := f.registry.CreateAccountWithMethod(context.Background(), "owner@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		linkValue, err := f.tokens.Issue(context.Background(), owner.ID, auth.MethodLinkedIn, time.Hour)
		require.NoError(t, err)

		_, err = f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-1", "owner@example.com"), linkValue)
		require.ErrorIs(t, err, auth.ErrLinkingTokenInvalid)

		_, err = f.registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub-1")
		require.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("claimed subject signs in before the link token is considered", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		other, err := f.registry.CreateAccountWithMethod(context.Background(), "other@example.com", auth.MethodGoogle, "claimed-sub")
		require.NoError(t, err)
		_ = other

		owner, err := f.registry.CreateAccountWithMethod(context.Background(), "owner@example.com", auth.MethodMagicLink, "")
		require.NoError(t, err)

		linkValue, err := f.tokens.Issue(context.Background(), owner.ID, auth.MethodGoogle, time.Hour)
		require.NoError(t, err)

		got, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("claimed-sub", "other@example.com"), linkValue)
		require.NoError(t, err)
		assert.Equal(t, other.ID, got.ID)
	})

	t.Run("forged link token rejected", func(t *testing.T) {
		t.Parallel()

		f := newAssociateFixture()
		_, err := f.svc.Associate(context.Background(), auth.MethodGoogle, verifiedProfile("sub-f", "user@example.com"), "forged")
		require.ErrorIs(t, err, auth.ErrLinkingTokenInvalid)
	})
}
