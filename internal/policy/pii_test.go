package policy

import (
	"strings"
	"testing"
)

func TestMaskEmailKeepsDomain(t *testing.T) {
	masked := MaskEmail("jane.doe@example.com")
	if masked != "ja****@example.com" {
		t.Fatalf("unexpected masked email: %q", masked)
	}
}

func TestMaskEmailHandlesShortLocalPart(t *testing.T) {
	masked := MaskEmail("j@example.com")
	if strings.Contains(masked, "j@") || !strings.HasSuffix(masked, "@example.com") {
		t.Fatalf("unexpected masked email: %q", masked)
	}
}

func TestMaskPhoneHidesMiddleDigits(t *testing.T) {
	masked := MaskPhone("+1 415 555 0100")
	if strings.Contains(masked, "555") {
		t.Fatalf("expected middle digits hidden, got %q", masked)
	}
	if !strings.HasPrefix(masked, "+14") || !strings.HasSuffix(masked, "00") {
		t.Fatalf("expected prefix/suffix preserved, got %q", masked)
	}
}

func TestMaskPhoneLeavesShortValuesAlone(t *testing.T) {
	if MaskPhone("12345") != "12345" {
		t.Fatalf("short values should pass through")
	}
}
