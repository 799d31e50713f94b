// internal/app/system/normalize/normalize.go
// Package normalize holds the canonical forms used when comparing user input.
package normalize

import "strings"

// Email lowercases and trims an email address. Stores key lookups on this form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// QueryParam trims a query string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Code lowercases a short machine code (error indicators, config enums).
func Code(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
