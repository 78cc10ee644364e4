// Package validator provides rule-based input validation. Rules accumulate
// into ValidationErrors, a field-keyed error type callers can unwrap with
// errors.As to render per-field messages.
package validator
