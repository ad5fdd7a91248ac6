package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}

func TestGenerateSecureTokenIsUnique(t *testing.T) {
	first, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	second, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
}

func TestHashValueIsDeterministic(t *testing.T) {
	if HashValue("123456") != HashValue("123456") {
		t.Fatal("expected identical digests for identical input")
	}
	if HashValue("123456") == HashValue("123457") {
		t.Fatal("expected different digests for different input")
	}
	if len(HashValue("123456")) != 64 {
		t.Fatal("expected hex-encoded sha256 digest")
	}
}
