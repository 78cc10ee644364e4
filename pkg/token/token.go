package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// valueBytes is the number of random bytes per token value. 32 bytes keeps a
// wide margin over the 128-bit minimum so truncating proxies or log scrubbers
// cannot reduce a leaked prefix below brute-force resistance.
const valueBytes = 32

// New returns a fresh random token value encoded with base64url (no padding).
func New() (string, error) {
	b := make([]byte, valueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", ErrEntropyUnavailable
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex-encoded SHA-256 digest of a token value. Only digests
// are persisted, so a storage compromise does not yield redeemable tokens.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
