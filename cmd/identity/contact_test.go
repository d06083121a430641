package identity

import "testing"

func TestNormalizeContact_Email(t *testing.T) {
	c, err := NormalizeContact("  User@Example.COM ", "+49")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind != KindEmail {
		t.Fatalf("expected email kind, got %q", c.Kind)
	}
	if c.Value != "user@example.com" {
		t.Fatalf("expected lowercased email, got %q", c.Value)
	}
}

func TestNormalizeContact_PhoneEquivalence(t *testing.T) {
	a, err := NormalizeContact("0049 171 2345678", "+49")
	if err != nil {
		t.Fatalf("unexpected error for 00-prefixed number: %v", err)
	}
	b, err := NormalizeContact("+491712345678", "+49")
	if err != nil {
		t.Fatalf("unexpected error for plus-prefixed number: %v", err)
	}
	if a.Value != b.Value {
		t.Fatalf("expected same canonical key, got %q vs %q", a.Value, b.Value)
	}
	if a.Kind != KindPhone || b.Kind != KindPhone {
		t.Fatalf("expected phone kind, got %q / %q", a.Kind, b.Kind)
	}
}

func TestNormalizeContact_LocalFormatGetsCountryCode(t *testing.T) {
	c, err := NormalizeContact("0171 234 56 78 90", "+49")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Value != "+49171234567890" {
		t.Fatalf("expected +49171234567890, got %q", c.Value)
	}
}

func TestNormalizeContact_RejectsShortAndLong(t *testing.T) {
	if _, err := NormalizeContact("+49123", "+49"); !IsInvalidContact(err) {
		t.Fatalf("expected InvalidContact for short number, got %v", err)
	}
	if _, err := NormalizeContact("+4912345678901234567", "+49"); !IsInvalidContact(err) {
		t.Fatalf("expected InvalidContact for long number, got %v", err)
	}
	if _, err := NormalizeContact("", "+49"); !IsInvalidContact(err) {
		t.Fatalf("expected InvalidContact for empty input, got %v", err)
	}
	if _, err := NormalizeContact("not-an-email-or-phone", "+49"); !IsInvalidContact(err) {
		t.Fatalf("expected InvalidContact for junk input, got %v", err)
	}
}

func TestNormalizeContact_Deterministic(t *testing.T) {
	first, err := NormalizeContact("+49 (171) 234-5678", "+49")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NormalizeContact("+49 (171) 234-5678", "+49")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("normalization is not deterministic: %+v vs %+v", first, second)
	}
}
