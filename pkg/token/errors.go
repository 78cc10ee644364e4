package token

import "errors"

var (
	// ErrEntropyUnavailable indicates the system random source failed.
	ErrEntropyUnavailable = errors.New("token: entropy source unavailable")
)
