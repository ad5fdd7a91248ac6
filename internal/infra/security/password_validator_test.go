package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidatorAcceptsStrongPassword(t *testing.T) {
	validator := DefaultPasswordValidator()

	if err := validator.Validate("Tr4verse!Harbor"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		code     string
	}{
		{name: "too short", password: "Ab1!", code: "min_length"},
		{name: "missing uppercase", password: "tr4verse!harbor", code: "uppercase"},
		{name: "missing lowercase", password: "TR4VERSE!HARBOR", code: "lowercase"},
		{name: "missing digit", password: "Traverse!Harbor", code: "digit"},
		{name: "missing symbol", password: "Tr4verseHarbor", code: "symbol"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if err == nil {
				t.Fatalf("expected %q to be rejected", tc.password)
			}
			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %T", err)
			}
			if violation.Code != tc.code {
				t.Fatalf("expected violation code %q, got %q", tc.code, violation.Code)
			}
		})
	}
}

func TestRequirePasswordStrengthRuleRejectsCommonPassword(t *testing.T) {
	rule := RequirePasswordStrengthRule(3)

	if err := rule.Validate("password"); err == nil {
		t.Fatal("expected common password to be rejected")
	}
	if err := rule.Validate("qL8#mR2$vX9@wP4z"); err != nil {
		t.Fatalf("expected high-entropy password to pass, got %v", err)
	}
}
