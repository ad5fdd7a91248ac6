package domain

import "time"

// CredentialPurpose scopes a one-time credential to the flow that may redeem it.
type CredentialPurpose string

const (
	PurposeEmailVerification CredentialPurpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     CredentialPurpose = "PASSWORD_RESET"
	PurposeRefresh           CredentialPurpose = "REFRESH"
)

// OneTimeCredential represents either a numeric OTP or an opaque token bound to
// one account. The value itself is stored as a sha256 digest.
type OneTimeCredential struct {
	ID         string
	AccountID  string
	ValueHash  string
	Purpose    CredentialPurpose
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
	IP         *string
	UserAgent  *string
}

// IsExpired reports whether the credential has passed its expiry at the given time.
func (c OneTimeCredential) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// Consume marks the credential as used. Returns true when the credential
// transitions from unused to used.
func (c *OneTimeCredential) Consume(at time.Time) bool {
	if c.Used {
		return false
	}
	c.Used = true
	usedAt := at
	c.UsedAt = &usedAt
	return true
}
