// Package utils provides small shared helpers for input validation.
package utils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// slugPattern matches lowercase alphanumeric slugs with hyphen separators,
// e.g. "sunrise-eldercare".
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidTenantSlug reports whether s is a well-formed tenant slug.
func IsValidTenantSlug(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	return slugPattern.MatchString(s)
}

// IsValidSessionID reports whether s parses as a UUID. Client-generated
// session identifiers are honored but must still be UUIDs.
func IsValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeSlug lowercases and trims a slug candidate before validation.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
// Used when embedding user text into log-safe metadata.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
