package sanitizer

import (
	"regexp"
	"strings"
)

var dotRegex = regexp.MustCompile(`\.+`)

// NormalizeEmail lowercases and trims an address and consolidates consecutive
// dots in the local part. Invalid shapes are returned as-is so the validator
// can reject them with the original input.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	local = dotRegex.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// MaskEmail hides the local part while preserving the domain, for log output
// that stays recognizable without exposing the address.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	if len(local) == 0 {
		return email
	}
	if len(local) == 1 {
		return "*@" + domain
	}

	return string(local[0]) + strings.Repeat("*", len(local)-1) + "@" + domain
}
