package payment

import "strings"

const (
	countryPrefix = "254"
	msisdnLength  = 12
)

// NormalizePhone canonicalizes a Kenyan mobile number to 254XXXXXXXXX.
// Whitespace and separators are stripped, a leading 0 is replaced with the
// country prefix, a leading +254 loses the plus, and any other prefix gets
// 254 prepended. Anything that does not end up as 12 digits starting with
// 254 is rejected.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	switch {
	case strings.HasPrefix(s, "0"):
		s = countryPrefix + s[1:]
	case strings.HasPrefix(s, "+"+countryPrefix):
		s = s[1:]
	case strings.HasPrefix(s, countryPrefix):
		// already canonical
	default:
		s = countryPrefix + s
	}
	if len(s) != msisdnLength || !allDigits(s) {
		return "", &ValidationError{Field: "phone", Reason: "must be a valid Kenyan mobile number, e.g. 0712345678 or 254712345678"}
	}
	return s, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
