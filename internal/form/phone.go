package form

import "strings"

// CountryCodeBR is the dial prefix added to numbers sent to the backends.
const CountryCodeBR = "55"

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatWhatsAppNumber formats a partially typed Brazilian phone number for
// display. The pattern grows with the number of digits:
//
//	1-2    11
//	3-6    (11) 9999
//	7-10   (11) 9999-8888
//	11+    (11) 99999-8888
//
// Digits past the eleventh are dropped.
func FormatWhatsAppNumber(raw string) string {
	d := Digits(raw)
	switch n := len(d); {
	case n <= 2:
		return d
	case n <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case n <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:min(n, 11)]
	}
}

// PrepareWhatsAppNumber converts a phone in any format to the digits-only
// international form expected by the backends, e.g. "5511999998888".
// It does not check the length; use ValidateWhatsApp for that.
func PrepareWhatsAppNumber(raw string) string {
	d := Digits(raw)
	if strings.HasPrefix(d, CountryCodeBR) {
		return d
	}
	return CountryCodeBR + d
}
