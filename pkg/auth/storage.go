package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the persistence contract required by the identity core. All
// mutating flows run their multi-step sequences through WithinTx so that a
// partially applied attach or create is never observable.
//
// Error contract:
//   - lookups return ErrAccountNotFound / ErrMethodNotFound when no active
//     row matches;
//   - CreateAccount returns ErrDuplicateEmail on the email unique constraint;
//   - CreateMethod returns ErrMethodAlreadyClaimed on the (kind, subject)
//     constraint and ErrMethodAlreadyPresent on the (account, kind) one;
//   - ConsumeLinkToken returns ErrTokenNotRedeemable unless it atomically
//     flipped an unconsumed, unexpired row to consumed;
//   - ConsumeOAuthState returns ErrStateNotFound unless it removed the state.
type Storage interface {
	// WithinTx runs fn against a transactional view of the storage. The
	// callback's Storage must be used for every operation inside fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error

	// Accounts.
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// Auth methods. Lookups consider active methods only.
	CreateMethod(ctx context.Context, method *AuthMethod) error
	GetMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind) (*AuthMethod, error)
	GetMethodBySubject(ctx context.Context, kind MethodKind, subject string) (*AuthMethod, error)
	ListMethods(ctx context.Context, accountID uuid.UUID) ([]AuthMethod, error)
	CountActiveMethods(ctx context.Context, accountID uuid.UUID) (int, error)
	DeactivateMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind) error
	TouchMethod(ctx context.Context, accountID uuid.UUID, kind MethodKind, usedAt time.Time) error

	// Link tokens. ConsumeLinkToken must be a single conditional update
	// (consumed=false AND unexpired) so concurrent redemptions cannot both
	// succeed.
	CreateLinkToken(ctx context.Context, tkn *LinkToken) error
	ConsumeLinkToken(ctx context.Context, hash string, now time.Time) (*LinkToken, error)
	VoidLinkTokens(ctx context.Context, accountID uuid.UUID, kind MethodKind) error
	VoidLinkTokenByHash(ctx context.Context, hash string) error

	// OAuth state, single-use CSRF tokens for the authorization redirect.
	StoreOAuthState(ctx context.Context, state string, expiresAt time.Time) error
	ConsumeOAuthState(ctx context.Context, state string) error

	// Password credentials.
	StorePasswordHash(ctx context.Context, accountID uuid.UUID, hash []byte) error
	GetPasswordHash(ctx context.Context, accountID uuid.UUID) ([]byte, error)
}
