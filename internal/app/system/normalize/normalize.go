// Package normalize canonicalizes user-supplied strings before they are
// validated or stored.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role lowercases the first rune only when the value is a known mixed
// case role spelling; otherwise it just trims. Role names such as
// "companyAdmin" are camelCase, so a blanket ToLower would corrupt them.
func Role(s string) string {
	return strings.TrimSpace(s)
}

// Phone strips spaces and common separators from a phone number.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, s)
}
