package identity

import (
	"regexp"
	"strings"
)

// ContactKind classifies a normalized contact.
type ContactKind string

const (
	// KindEmail is an email contact.
	KindEmail ContactKind = "email"
	// KindPhone is a phone-number contact.
	KindPhone ContactKind = "phone"
)

// Contact is a classified, canonicalized user identifier.
// Value is the exact lookup key used in storage: repeated submissions of
// equivalent inputs must produce the same Contact.
type Contact struct {
	Kind  ContactKind
	Value string
}

// DefaultCountryCode is prepended to local-format phone numbers
// when no explicit prefix is given.
const DefaultCountryCode = "+49"

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeContact classifies raw as email or phone and canonicalizes it.
//
// Emails are matched against a simple local@domain.tld grammar and
// lower-cased. Everything else is treated as a phone number: whitespace and
// all characters except digits and '+' are stripped, a leading "00" becomes
// "+", and bare local-format numbers (>= 10 digits, no '+') get
// countryCode prepended with a single leading zero dropped. The final digit
// count must be within [10,15].
//
// Returns ErrInvalidContact for anything that fails these rules.
func NormalizeContact(raw, countryCode string) (Contact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Contact{}, OpError{Op: "identity.NormalizeContact", Kind: ErrInvalidContact, Msg: "empty contact"}
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	if emailRe.MatchString(raw) {
		return Contact{Kind: KindEmail, Value: strings.ToLower(raw)}, nil
	}

	phone, ok := sanitizePhone(raw, countryCode)
	if !ok {
		return Contact{}, OpError{Op: "identity.NormalizeContact", Kind: ErrInvalidContact, Msg: "invalid phone number"}
	}
	return Contact{Kind: KindPhone, Value: phone}, nil
}

func sanitizePhone(raw, countryCode string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteByte(byte(r))
		}
	}
	cleaned := b.String()

	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}
	if !strings.HasPrefix(cleaned, "+") && len(cleaned) >= 10 {
		cleaned = countryCode + strings.TrimPrefix(cleaned, "0")
	}

	digits := len(cleaned)
	if strings.HasPrefix(cleaned, "+") {
		digits--
	}
	// Stray '+' inside the number makes it malformed.
	if strings.Count(cleaned, "+") > 1 || strings.LastIndex(cleaned, "+") > 0 {
		return "", false
	}
	if digits < 10 || digits > 15 {
		return "", false
	}
	return cleaned, true
}
