package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/auth"
)

func (s *Storage) CreateAccount(ctx context.Context, account *auth.Account) error {
	const query = `
		INSERT INTO accounts (id, email, is_active, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.Exec(ctx, query, account.ID, account.Email, account.IsActive, account.CreatedAt); err != nil {
		return mapConstraintErr(err, "failed to insert account")
	}
	return nil
}

func (s *Storage) GetAccountByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	const query = `
		SELECT id, email, is_active, created_at
		FROM accounts
		WHERE id = $1`

	return s.scanAccount(s.db.QueryRow(ctx, query, id))
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	const query = `
		SELECT id, email, is_active, created_at
		FROM accounts
		WHERE email = $1`

	return s.scanAccount(s.db.QueryRow(ctx, query, email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanAccount(row rowScanner) (*auth.Account, error) {
	var account auth.Account
	err := row.Scan(&account.ID, &account.Email, &account.IsActive, &account.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &account, nil
}
