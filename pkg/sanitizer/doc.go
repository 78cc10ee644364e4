// Package sanitizer normalizes untrusted input before it reaches storage or
// comparison. Email normalization lowercases and trims so that uniqueness
// checks and lookups agree on a single canonical form.
package sanitizer
