// Package ratelimit implements a fixed-window request limiter over a
// pluggable counter Store. The in-memory store suits tests and single-process
// runs; the Redis store shares windows across instances by incrementing a
// per-window key whose TTL closes the window.
//
// Counters are not durable. A restart resets all windows, which is an
// accepted trade of strictness for simplicity.
package ratelimit
