// Package phone normalizes phone numbers at every boundary where one enters
// the system. Tenant resolution, SMS sender matching, and patient lookup all
// compare E.164 strings produced here, never raw provider formatting.
package phone

import (
	"regexp"
	"strings"
)

var digitsRe = regexp.MustCompile(`\d+`)

// Digits strips everything except digits.
func Digits(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(digitsRe.FindAllString(value, -1), "")
}

// NormalizeE164 canonicalizes a number to +<digits>. Ten-digit North American
// numbers get a country code prepended. Empty or digit-free input returns "".
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := Digits(value)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits
}
