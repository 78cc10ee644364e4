package auth

import (
	"time"

	"github.com/google/uuid"
)

// MethodKind identifies one way of proving control of an account.
type MethodKind string

// Supported authentication method kinds.
const (
	MethodPassword  MethodKind = "password"
	MethodGoogle    MethodKind = "google"
	MethodLinkedIn  MethodKind = "linkedin"
	MethodMagicLink MethodKind = "magic_link"
)

// IsExternal reports whether the method carries a provider-issued subject
// identifier. Password and magic-link methods are anchored to the account
// itself and have an empty subject.
func (k MethodKind) IsExternal() bool {
	return k == MethodGoogle || k == MethodLinkedIn
}

// Valid reports whether the kind is one of the supported method kinds.
func (k MethodKind) Valid() bool {
	switch k {
	case MethodPassword, MethodGoogle, MethodLinkedIn, MethodMagicLink:
		return true
	}
	return false
}

// Account is the durable user identity. It is created exactly once per
// normalized email and is never hard-deleted while methods reference it.
type Account struct {
	ID        uuid.UUID
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

// AuthMethod is one authentication method attached to an account. Subject is
// the provider's opaque identifier for the human and is empty for password
// and magic-link methods. Detached methods are deactivated, never deleted;
// re-attaching creates a fresh record.
type AuthMethod struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Kind       MethodKind
	Subject    string
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// LinkToken is the stored form of a short-lived single-use credential. Only
// the SHA-256 digest of the token value is persisted; the plaintext value is
// returned exactly once by TokenStore.Issue.
type LinkToken struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Kind      MethodKind
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ProviderProfile is the normalized identity a provider adapter resolves from
// an authorization code. The association flow treats it as untrusted input.
type ProviderProfile struct {
	// Subject is the provider's stable user identifier, stringified.
	Subject string

	// Email is the provider's email claim, normalized by the core before use.
	Email string

	// EmailVerified indicates whether the provider asserts the email is
	// verified. Unverified claims are not acceptable for account creation.
	EmailVerified bool
}
