// Package logger constructs slog loggers from environment configuration and
// provides attribute helpers (Component, AccountID, Email, Error) so log
// records stay consistently keyed across the codebase.
package logger
