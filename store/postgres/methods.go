package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/auth"
)

const methodColumns = `id, account_id, kind, subject, is_active, created_at, last_used_at`

func (s *Storage) CreateMethod(ctx context.Context, method *auth.AuthMethod) error {
	const query = `
		INSERT INTO auth_methods (id, account_id, kind, subject, is_active, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		method.ID, method.AccountID, method.Kind, method.Subject,
		method.IsActive, method.CreatedAt, method.LastUsedAt)
	if err != nil {
		return mapConstraintErr(err, "failed to insert auth method")
	}
	return nil
}

func (s *Storage) GetMethod(ctx context.Context, accountID uuid.UUID, kind auth.MethodKind) (*auth.AuthMethod, error) {
	const query = `
		SELECT ` + methodColumns + `
		FROM auth_methods
		WHERE account_id = $1 AND kind = $2 AND is_active`

	return s.scanMethod(s.db.QueryRow(ctx, query, accountID, kind))
}

func (s *Storage) GetMethodBySubject(ctx context.Context, kind auth.MethodKind, subject string) (*auth.AuthMethod, error) {
	const query = `
		SELECT ` + methodColumns + `
		FROM auth_methods
		WHERE kind = $1 AND subject = $2 AND is_active`

	return s.scanMethod(s.db.QueryRow(ctx, query, kind, subject))
}

func (s *Storage) ListMethods(ctx context.Context, accountID uuid.UUID) ([]auth.AuthMethod, error) {
	const query = `
		SELECT ` + methodColumns + `
		FROM auth_methods
		WHERE account_id = $1
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth methods: %w", err)
	}
	defer rows.Close()

	var methods []auth.AuthMethod
	for rows.Next() {
		var m auth.AuthMethod
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Kind, &m.Subject, &m.IsActive, &m.CreatedAt, &m.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (s *Storage) CountActiveMethods(ctx context.Context, accountID uuid.UUID) (int, error) {
	const query = `
		SELECT count(*)
		FROM auth_methods
		WHERE account_id = $1 AND is_active`

	var n int
	if err := s.db.QueryRow(ctx, query, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count auth methods: %w", err)
	}
	return n, nil
}

func (s *Storage) DeactivateMethod(ctx context.Context, accountID uuid.UUID, kind auth.MethodKind) error {
	const query = `
		UPDATE auth_methods
		SET is_active = false
		WHERE account_id = $1 AND kind = $2 AND is_active`

	tag, err := s.db.Exec(ctx, query, accountID, kind)
	if err != nil {
		return fmt.Errorf("failed to deactivate auth method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrMethodNotFound
	}
	return nil
}

func (s *Storage) TouchMethod(ctx context.Context, accountID uuid.UUID, kind auth.MethodKind, usedAt time.Time) error {
	const query = `
		UPDATE auth_methods
		SET last_used_at = $3
		WHERE account_id = $1 AND kind = $2 AND is_active`

	tag, err := s.db.Exec(ctx, query, accountID, kind, usedAt)
	if err != nil {
		return fmt.Errorf("failed to update auth method usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrMethodNotFound
	}
	return nil
}

func (s *Storage) scanMethod(row rowScanner) (*auth.AuthMethod, error) {
	var m auth.AuthMethod
	err := row.Scan(&m.ID, &m.AccountID, &m.Kind, &m.Subject, &m.IsActive, &m.CreatedAt, &m.LastUsedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, auth.ErrMethodNotFound
		}
		return nil, fmt.Errorf("failed to scan auth method: %w", err)
	}
	return &m, nil
}
