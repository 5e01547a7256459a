package util

import (
	"strings"
)

// NormalizeEmail lowercases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CleanName trims a display name and collapses internal whitespace runs.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CleanNamePtr applies CleanName to an optional value.
func CleanNamePtr(name *string) *string {
	if name == nil {
		return nil
	}
	v := CleanName(*name)
	return &v
}
