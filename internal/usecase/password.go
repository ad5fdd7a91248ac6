package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
	"github.com/helioscale/platform-auth/internal/infra/logger"
	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/repository"
)

const (
	// ForgotPasswordMessage is returned for every forgot-password request.
	// Known and unknown emails must produce byte-identical responses.
	ForgotPasswordMessage = "If the email exists, a password reset code has been sent."

	passwordResetSuccessMessage  = "Password reset successfully. You can now log in with your new password."
	passwordChangeSuccessMessage = "Password changed successfully."
)

// PasswordService coordinates forgot-password, reset, and change flows.
type PasswordService struct {
	cfg         *config.AppConfig
	accounts    port.AccountRepository
	credentials *CredentialStore
	notifier    port.Notifier
	audit       port.AuditRepository
	hasher      *security.Hasher
	validator   *security.PasswordValidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	credentials *CredentialStore,
	notifier port.Notifier,
	audit port.AuditRepository,
	hasher *security.Hasher,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		cfg:         cfg,
		accounts:    accounts,
		credentials: credentials,
		notifier:    notifier,
		audit:       audit,
		hasher:      hasher,
		validator:   validator,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ForgotPassword issues a reset code when the email is known. The response is
// identical either way so the endpoint cannot be used to enumerate accounts.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (string, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return ForgotPasswordMessage, nil
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	code, err := s.credentials.IssueCode(ctx, account.ID, domain.PurposePasswordReset, IssueMeta{IP: meta.IP, UserAgent: meta.UserAgent})
	if err != nil {
		return "", err
	}

	recordAudit(ctx, s.audit, s.logger, domain.AuditEvent{
		ID:         uuid.NewString(),
		Category:   domain.AuditCategorySecurity,
		Action:     domain.AuditActionOTPSent,
		AccountID:  optional(account.ID),
		TenantID:   account.TenantID,
		Success:    true,
		IP:         optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		OccurredAt: s.now().UTC(),
	})

	if err := s.notifier.Send(ctx, port.Notification{
		Template:  port.TemplatePasswordResetCode,
		Recipient: account.Email,
		Name:      account.DisplayName,
		Code:      code,
	}); err != nil {
		s.logger.Warn("password reset code delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return ForgotPasswordMessage, nil
}

// ResetPassword exchanges a reset code for a new password. The credential is
// consumed only after the password has been stored, so a storage failure
// leaves the code redeemable.
func (s *PasswordService) ResetPassword(ctx context.Context, code, newPassword string, meta RequestMeta) (string, error) {
	credential, err := s.credentials.Peek(ctx, "", domain.PurposePasswordReset, code)
	if err != nil {
		if errors.Is(err, ErrCredentialExpired) {
			return "", ErrCredentialInvalid
		}
		return "", err
	}

	if err := validatePassword(s.validator, newPassword); err != nil {
		return "", err
	}

	account, err := s.accounts.GetByID(ctx, credential.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrCredentialInvalid
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, s.now().UTC()); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}

	if err := s.credentials.Consume(ctx, credential); err != nil {
		return "", err
	}
	if _, err := s.credentials.InvalidateAll(ctx, account.ID, domain.PurposePasswordReset); err != nil {
		s.logger.Warn("failed to invalidate remaining reset codes",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	if err := s.notifier.Send(ctx, port.Notification{
		Template:  port.TemplateSecurityAlert,
		Recipient: account.Email,
		Name:      account.DisplayName,
		Subject:   "Your password was reset",
	}); err != nil {
		s.logger.Warn("security alert delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	recordAudit(ctx, s.audit, s.logger, domain.AuditEvent{
		ID:         uuid.NewString(),
		Category:   domain.AuditCategorySecurity,
		Action:     domain.AuditActionPasswordReset,
		AccountID:  optional(account.ID),
		TenantID:   account.TenantID,
		Success:    true,
		IP:         optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		OccurredAt: s.now().UTC(),
	})

	return passwordResetSuccessMessage, nil
}

// ChangePassword updates the password for an authenticated account after
// verifying the current one. Existing refresh tokens stay valid; rotation on
// change is a deliberate follow-up, not part of this flow.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta RequestMeta) (string, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	if account.PasswordHash == nil {
		return "", ErrInvalidCredentials
	}

	match, err := s.hasher.Compare(currentPassword, *account.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return "", ErrInvalidCredentials
	}

	if err := validatePassword(s.validator, newPassword); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, s.now().UTC()); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, domain.AuditEvent{
		ID:         uuid.NewString(),
		Category:   domain.AuditCategorySecurity,
		Action:     domain.AuditActionPasswordChanged,
		AccountID:  optional(account.ID),
		TenantID:   account.TenantID,
		Success:    true,
		IP:         optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		OccurredAt: s.now().UTC(),
	})

	return passwordChangeSuccessMessage, nil
}
