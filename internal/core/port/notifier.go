package port

import "context"

// Notification is a fire-and-forget request to deliver a templated message.
type Notification struct {
	Template   string
	Recipient  string
	Name       string
	TenantName string
	Code       string
	Subject    string
}

// Notification templates understood by the downstream mailer.
const (
	TemplateVerificationCode  = "verification_code"
	TemplatePasswordResetCode = "password_reset_code"
	TemplateSecurityAlert     = "security_alert"
	TemplateWelcome           = "welcome"
)

// Notifier accepts delivery requests for out-of-band notifications. Delivery
// is best-effort; callers decide whether a failure is fatal.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}
