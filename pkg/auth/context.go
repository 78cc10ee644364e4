package auth

import (
	"context"
)

type accountContextKey struct{}

// SetAccountToContext stores the authenticated account in context for
// middleware chain access.
func SetAccountToContext(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// GetAccountFromContext retrieves the authenticated account from context.
// Returns nil if no account was previously stored.
func GetAccountFromContext(ctx context.Context) *Account {
	account, _ := ctx.Value(accountContextKey{}).(*Account)
	return account
}
