package auth

import "errors"

// Registry errors.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrMethodNotFound       = errors.New("auth method not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrMethodAlreadyClaimed = errors.New("external identity already linked to another account")
	ErrMethodAlreadyPresent = errors.New("auth method already attached to this account")
	ErrLastMethod           = errors.New("cannot remove the only remaining auth method")
)

// Token errors. Not-found, expired and already-consumed are deliberately not
// distinguishable from the outside so a caller probing tokens learns nothing.
var (
	ErrTokenNotRedeemable = errors.New("token is invalid or expired")
)

// Flow errors.
var (
	ErrEmailClaimMissing   = errors.New("provider did not supply a verifiable email")
	ErrLinkingTokenInvalid = errors.New("linking token is invalid or expired")
	ErrSignInToLink        = errors.New("sign in with your existing method first, then link")
	ErrRateLimited         = errors.New("too many requests")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidEmail        = errors.New("invalid email address")
)

// OAuth errors.
var (
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrStateNotFound  = errors.New("oauth state not found or expired")
	ErrInvalidCode    = errors.New("invalid oauth code")
	ErrInvalidProfile = errors.New("provider profile is missing the subject identifier")
)
