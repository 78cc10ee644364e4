package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflowhq/identity/pkg/auth"
)

func TestRegistry_CreateAccount(t *testing.T) {
	t.Parallel()

	t.Run("creates active account with normalized email", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "  User@Example.COM ")
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", account.Email)
		assert.True(t, account.IsActive)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		_, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)

		_, err = registry.CreateAccount(context.Background(), "USER@example.com")
		require.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("invalid email", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		_, err := registry.CreateAccount(context.Background(), "not-an-email")
		require.ErrorIs(t, err, auth.ErrInvalidEmail)
	})
}

func TestRegistry_AttachMethod(t *testing.T) {
	t.Parallel()

	t.Run("attach and look up by subject", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)

		method, err := registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "google-sub-1")
		require.NoError(t, err)
		assert.True(t, method.IsActive)

		found, err := registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "google-sub-1")
		require.NoError(t, err)
		assert.Equal(t, account.ID, found.ID)
	})

	t.Run("idempotent for identical triple", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)

		first, err := registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)
		second, err := registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.NotNil(t, second.LastUsedAt)
	})

	t.Run("subject claimed by another account", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		owner, err := registry.CreateAccount(context.Background(), "owner@example.com")
		require.NoError(t, err)
		other, err := registry.CreateAccount(context.Background(), "other@example.com")
		require.NoError(t, err)

		_, err = registry.AttachMethod(context.Background(), owner.ID, auth.MethodGoogle, "shared-sub")
		require.NoError(t, err)

		_, err = registry.AttachMethod(context.Background(), other.ID, auth.MethodGoogle, "shared-sub")
		require.ErrorIs(t, err, auth.ErrMethodAlreadyClaimed)
	})

	t.Run("kind already present with different subject", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)

		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub-a")
		require.NoError(t, err)

		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub-b")
		require.ErrorIs(t, err, auth.ErrMethodAlreadyPresent)
	})
}

func TestRegistry_DetachMethod(t *testing.T) {
	t.Parallel()

	t.Run("refuses to remove the only method", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)

		err = registry.DetachMethod(context.Background(), account.ID, auth.MethodGoogle)
		require.ErrorIs(t, err, auth.ErrLastMethod)
	})

	t.Run("detaches and preserves history", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodMagicLink, "")
		require.NoError(t, err)

		require.NoError(t, registry.DetachMethod(context.Background(), account.ID, auth.MethodGoogle))

		has, err := registry.HasMethod(context.Background(), account.ID, auth.MethodGoogle)
		require.NoError(t, err)
		assert.False(t, has)

		// The record stays visible in the method list as history.
		methods, err := registry.ListMethods(context.Background(), account.ID)
		require.NoError(t, err)
		assert.Len(t, methods, 2)

		_, err = registry.FindAccountByMethod(context.Background(), auth.MethodGoogle, "sub")
		require.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("re-attach after detach creates a fresh record", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)
		original, err := registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodMagicLink, "")
		require.NoError(t, err)

		require.NoError(t, registry.DetachMethod(context.Background(), account.ID, auth.MethodGoogle))

		fresh, err := registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)
		assert.NotEqual(t, original.ID, fresh.ID)
	})

	t.Run("detach voids outstanding link tokens for the pair", func(t *testing.T) {
		t.Parallel()

		storage := newFakeStorage()
		registry := auth.NewRegistry(storage)
		tokens := auth.NewTokenStore(storage)

		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodGoogle, "sub")
		require.NoError(t, err)
		_, err = registry.AttachMethod(context.Background(), account.ID, auth.MethodMagicLink, "")
		require.NoError(t, err)

		value, err := tokens.Issue(context.Background(), account.ID, auth.MethodGoogle, time.Hour)
		require.NoError(t, err)

		require.NoError(t, registry.DetachMethod(context.Background(), account.ID, auth.MethodGoogle))

		_, _, err = tokens.Redeem(context.Background(), value)
		require.ErrorIs(t, err, auth.ErrTokenNotRedeemable)
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()

		registry := auth.NewRegistry(newFakeStorage())
		account, err := registry.CreateAccount(context.Background(), "user@example.com")
		require.NoError(t, err)

		err = registry.DetachMethod(context.Background(), account.ID, auth.MethodGoogle)
		require.ErrorIs(t, err, auth.ErrMethodNotFound)
	})
}

func TestRegistry_CreateAccountWithMethod(t *testing.T) {
	t.Parallel()

	registry := auth.NewRegistry(newFakeStorage())
	account, err := registry.CreateAccountWithMethod(context.Background(), "user@example.com", auth.MethodGoogle, "sub")
	require.NoError(t, err)

	has, err := registry.HasMethod(context.Background(), account.ID, auth.MethodGoogle)
	require.NoError(t, err)
	assert.True(t, has)
}
