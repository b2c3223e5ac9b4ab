// Package crm routes qualified leads to the per-property registrant API and
// keeps the remote records idempotent via search-then-create-or-update.
package crm

import "strings"

// NormalizePhone canonicalizes a phone number for the registrant API: the
// messaging-channel prefix is stripped, a leading '+' is kept, every other
// non-digit is dropped, and a bare 10-digit number gets the default country
// code. Write and search must use the same form or the remote system grows
// duplicate registrants.
func NormalizePhone(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "whatsapp:")

	plus := strings.HasPrefix(phone, "+")
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	if plus {
		return "+" + digits.String()
	}
	if digits.Len() == 10 {
		return countryCode + digits.String()
	}
	return "+" + digits.String()
}
