package domain

import "time"

// Audit event categories and actions recorded by the auth flows.
const (
	AuditCategoryAuthentication = "AUTHENTICATION"
	AuditCategorySecurity       = "SECURITY_EVENT"

	AuditActionLogin           = "LOGIN"
	AuditActionLoginFailed     = "LOGIN_FAILED"
	AuditActionPasswordReset   = "PASSWORD_RESET"
	AuditActionPasswordChanged = "PASSWORD_CHANGED"
	AuditActionEmailVerified   = "EMAIL_VERIFIED"
	AuditActionOTPSent         = "OTP_SENT"
)

// AuditEvent is an append-only record of a security-relevant occurrence.
// The auth core only ever writes these; nothing here reads them back.
type AuditEvent struct {
	ID           string
	Category     string
	Action       string
	AccountID    *string
	TenantID     *string
	Success      bool
	ErrorMessage *string
	IP           *string
	UserAgent    *string
	OccurredAt   time.Time
}
