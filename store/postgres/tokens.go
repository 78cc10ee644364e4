package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/auth"
)

func (s *Storage) CreateLinkToken(ctx context.Context, tkn *auth.LinkToken) error {
	const query = `
		INSERT INTO link_tokens (id, account_id, kind, hash, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		tkn.ID, tkn.AccountID, tkn.Kind, tkn.Hash, tkn.IssuedAt, tkn.ExpiresAt, tkn.Consumed)
	if err != nil {
		return fmt.Errorf("failed to insert link token: %w", err)
	}
	return nil
}

// ConsumeLinkToken flips an unconsumed, unexpired token to consumed in one
// conditional update. Under concurrent redemption exactly one caller sees the
// returned row; everyone else gets ErrTokenNotRedeemable.
func (s *Storage) ConsumeLinkToken(ctx context.Context, hash string, now time.Time) (*auth.LinkToken, error) {
	const query = `
		UPDATE link_tokens
		SET consumed = true
		WHERE hash = $1 AND NOT consumed AND expires_at > $2
		RETURNING id, account_id, kind, hash, issued_at, expires_at, consumed`

	var tkn auth.LinkToken
	err := s.db.QueryRow(ctx, query, hash, now).Scan(
		&tkn.ID, &tkn.AccountID, &tkn.Kind, &tkn.Hash, &tkn.IssuedAt, &tkn.ExpiresAt, &tkn.Consumed)
	if err != nil {
		if isNoRows(err) {
			return nil, auth.ErrTokenNotRedeemable
		}
		return nil, fmt.Errorf("failed to consume link token: %w", err)
	}
	return &tkn, nil
}

func (s *Storage) VoidLinkTokens(ctx context.Context, accountID uuid.UUID, kind auth.MethodKind) error {
	const query = `
		UPDATE link_tokens
		SET consumed = true
		WHERE account_id = $1 AND kind = $2 AND NOT consumed`

	if _, err := s.db.Exec(ctx, query, accountID, kind); err != nil {
		return fmt.Errorf("failed to void link tokens: %w", err)
	}
	return nil
}

func (s *Storage) VoidLinkTokenByHash(ctx context.Context, hash string) error {
	const query = `
		UPDATE link_tokens
		SET consumed = true
		WHERE hash = $1 AND NOT consumed`

	if _, err := s.db.Exec(ctx, query, hash); err != nil {
		return fmt.Errorf("failed to void link token: %w", err)
	}
	return nil
}

func (s *Storage) StoreOAuthState(ctx context.Context, state string, expiresAt time.Time) error {
	const query = `
		INSERT INTO oauth_states (state, expires_at)
		VALUES ($1, $2)`

	if _, err := s.db.Exec(ctx, query, state, expiresAt); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes the state row, so a second callback carrying the
// same state finds nothing.
func (s *Storage) ConsumeOAuthState(ctx context.Context, state string) error {
	const query = `
		DELETE FROM oauth_states
		WHERE state = $1 AND expires_at > now()`

	tag, err := s.db.Exec(ctx, query, state)
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrStateNotFound
	}
	return nil
}

func (s *Storage) StorePasswordHash(ctx context.Context, accountID uuid.UUID, hash []byte) error {
	const query = `
		INSERT INTO password_credentials (account_id, hash, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id) DO UPDATE SET hash = EXCLUDED.hash, updated_at = now()`

	if _, err := s.db.Exec(ctx, query, accountID, hash); err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

func (s *Storage) GetPasswordHash(ctx context.Context, accountID uuid.UUID) ([]byte, error) {
	const query = `
		SELECT hash
		FROM password_credentials
		WHERE account_id = $1`

	var hash []byte
	if err := s.db.QueryRow(ctx, query, accountID).Scan(&hash); err != nil {
		if isNoRows(err) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load password hash: %w", err)
	}
	return hash, nil
}

// DeleteExpiredTokens removes consumed and expired link tokens and stale
// oauth states. Intended for a periodic maintenance job.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, olderThan time.Time) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM link_tokens WHERE expires_at < $1`, olderThan); err != nil {
		return fmt.Errorf("failed to prune link tokens: %w", err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at < $1`, olderThan); err != nil {
		return fmt.Errorf("failed to prune oauth states: %w", err)
	}
	return nil
}
