package dispatch

import "strings"

// Normalize converts a local-format contact into the transport address form.
// Addresses that already carry a domain (contacts or groups) pass through.
func Normalize(raw, countryCode, suffix string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.Contains(s, "@") {
		return s
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "0") {
		s = countryCode + s[1:]
	}
	return s + suffix
}
