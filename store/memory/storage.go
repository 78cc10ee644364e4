// Package memory implements the identity storage contract in process memory.
// It honors the same error contract as the Postgres implementation, including
// atomic single-winner link-token consumption, and backs tests and local
// development without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindflowhq/identity/pkg/auth"
)

// Storage is an in-memory auth.Storage. All methods are safe for concurrent
// use. WithinTx provides atomicity through the shared mutex but no rollback;
// callers relying on rollback semantics need the Postgres implementation.
type Storage struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]auth.Account
	emails    map[string]uuid.UUID
	methods   []auth.AuthMethod
	tokens    map[string]auth.LinkToken
	states    map[string]time.Time
	passwords map[uuid.UUID][]byte
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{
		accounts:  make(map[uuid.UUID]auth.Account),
		emails:    make(map[string]uuid.UUID),
		tokens:    make(map[string]auth.LinkToken),
		states:    make(map[string]time.Time),
		passwords: make(map[uuid.UUID][]byte),
	}
}

func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.Storage) error) error {
	return fn(ctx, s)
}

func (s *Storage) CreateAccount(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[account.Email]; ok {
		return auth.ErrDuplicateEmail
	}
	s.accounts[account.ID] = *account
	s.emails[account.Email] = account.ID
	return nil
}

func (s *Storage) GetAccountByID(_ context.Context, id uuid.UUID) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Storage) GetAccountByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *Storage) CreateMethod(_ context.Context, method *auth.AuthMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if !m.IsActive {
			continue
		}
		if method.Subject != "" && m.Kind == method.Kind && m.Subject == method.Subject {
			return auth.ErrMethodAlreadyClaimed
		}
		if m.AccountID == method.AccountID && m.Kind == method.Kind {
			return auth.ErrMethodAlreadyPresent
		}
	}
	s.methods = append(s.methods, *method)
	return nil
}

func (s *Storage) GetMethod(_ context.Context, accountID uuid.UUID, kind auth.MethodKind) (*auth.AuthMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if m.IsActive && m.AccountID == accountID && m.Kind == kind {
			cp := m
			return &cp, nil
		}
	}
	return nil, auth.ErrMethodNotFound
}

func (s *Storage) GetMethodBySubject(_ context.Context, kind auth.MethodKind, subject string) (*auth.AuthMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if m.IsActive && m.Kind == kind && m.Subject == subject {
			cp := m
			return &cp, nil
		}
	}
	return nil, auth.ErrMethodNotFound
}

func (s *Storage) ListMethods(_ context.Context, accountID uuid.UUID) ([]auth.AuthMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.AuthMethod
	for _, m := range s.methods {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Storage) CountActiveMethods(_ context.Context, accountID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.methods {
		if m.IsActive && m.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *Storage) DeactivateMethod(_ context.Context, accountID uuid.UUID, kind auth.MethodKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.methods {
		if m.IsActive && m.AccountID == accountID && m.Kind == kind {
			s.methods[i].IsActive = false
			return nil
		}
	}
	return auth.ErrMethodNotFound
}

func (s *Storage) TouchMethod(_ context.Context, accountID uuid.UUID, kind auth.MethodKind, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.methods {
		if m.IsActive && m.AccountID == accountID && m.Kind == kind {
			s.methods[i].LastUsedAt = &usedAt
			return nil
		}
	}
	return auth.ErrMethodNotFound
}

func (s *Storage) CreateLinkToken(_ context.Context, tkn *auth.LinkToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tkn.Hash] = *tkn
	return nil
}

func (s *Storage) ConsumeLinkToken(_ context.Context, hash string, now time.Time) (*auth.LinkToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tkn, ok := s.tokens[hash]
	if !ok || tkn.Consumed || now.After(tkn.ExpiresAt) {
		return nil, auth.ErrTokenNotRedeemable
	}
	tkn.Consumed = true
	s.tokens[hash] = tkn
	return &tkn, nil
}

func (s *Storage) VoidLinkTokens(_ context.Context, accountID uuid.UUID, kind auth.MethodKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, tkn := range s.tokens {
		if tkn.AccountID == accountID && tkn.Kind == kind && !tkn.Consumed {
			tkn.Consumed = true
			s.tokens[hash] = tkn
		}
	}
	return nil
}

func (s *Storage) VoidLinkTokenByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tkn, ok := s.tokens[hash]; ok {
		tkn.Consumed = true
		s.tokens[hash] = tkn
	}
	return nil
}

func (s *Storage) StoreOAuthState(_ context.Context, state string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = expiresAt
	return nil
}

func (s *Storage) ConsumeOAuthState(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.states[state]
	if !ok || time.Now().After(expiresAt) {
		return auth.ErrStateNotFound
	}
	delete(s.states, state)
	return nil
}

func (s *Storage) StorePasswordHash(_ context.Context, accountID uuid.UUID, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[accountID] = append([]byte(nil), hash...)
	return nil
}

func (s *Storage) GetPasswordHash(_ context.Context, accountID uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.passwords[accountID]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return append([]byte(nil), hash...), nil
}
