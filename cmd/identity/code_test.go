package identity

import (
	"regexp"
	"testing"
)

func TestNewEntryCode_SixDigits(t *testing.T) {
	re := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 200; i++ {
		code, err := NewEntryCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !re.MatchString(code) {
			t.Fatalf("code %q is not a 6-digit value in [100000,999999]", code)
		}
	}
}

func TestPadCode(t *testing.T) {
	if got := PadCode("123456"); got != "123456" {
		t.Fatalf("expected unchanged code, got %q", got)
	}
	if got := PadCode("42"); got != "000042" {
		t.Fatalf("expected zero-padded code, got %q", got)
	}
}
