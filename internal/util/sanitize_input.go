package util

import (
	"strings"
	"unicode"
)

// SanitizeName trims free text such as first and last names and drops control
// characters so it cannot break a plain-text body or a log line.
func SanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// NormalizeRecipient turns an email address into the key used by the ledger and
// the verification registry. The address is otherwise left intact: it is also
// the delivery target.
func NormalizeRecipient(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContainsSuspicious reports markup or template fragments in free text such as
// the first and last names echoed back in notification bodies.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, c := range []string{"<", ">", "$", "{", "}", "script", "onerror", "onload"} {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
