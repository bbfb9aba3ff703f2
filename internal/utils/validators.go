package utils

import (
	"strings"
	"unicode"
)

// IsValidEmail checks if the email string contains an "@" symbol.
func IsValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// NormalizePaymentCode trims and upper-cases a payment code as typed by a
// participant.
func NormalizePaymentCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidPaymentCode accepts letters, digits and dashes, 4 to 64 long.
func IsValidPaymentCode(code string) bool {
	if len(code) < 4 || len(code) > 64 {
		return false
	}
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
