// Package session provides cookie-backed session management with pluggable
// storage. A Manager orchestrates the life-cycle: it reads the session token
// from the request cookie, loads state from a Store, and writes the cookie
// back on changes.
//
// Sessions start anonymous with a short TTL and are promoted on
// authentication, at which point the token is rotated and the longer
// authenticated TTL applies. The Data bag carries small per-session values
// across requests; it survives re-authentication of the same browser session.
//
// Two stores ship with the package: an in-memory store with a cleanup
// goroutine for tests and single-process deployments, and a Redis store that
// delegates expiry to key TTLs.
package session
