// Package token provides primitives for opaque, single-use credentials:
// cryptographically random values and the digest form in which they are
// persisted.
//
// A token value is 32 bytes from crypto/rand, base64url-encoded, which
// comfortably exceeds the 128-bit unguessability floor required for
// magic-link and account-linking credentials. Storage layers must keep only
// Hash(value); the plaintext value exists exactly once, in the response to
// the issuing call.
//
// Usage:
//
//	value, err := token.New()
//	if err != nil { ... }
//	digest := token.Hash(value)   // persist digest, hand value to the user
//
//	// later, on redemption:
//	row, err := store.ConsumeByHash(ctx, token.Hash(presented))
package token
