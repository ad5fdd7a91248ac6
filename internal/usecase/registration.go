package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const registrationSuccessMessage = "Registration successful. Please check your email for the verification code."

var (
	// ErrEmailTaken indicates a verified account already owns the email.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrTenantNotFound indicates the requested tenant slug does not resolve.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrDefaultTenantMissing indicates the fallback tenant is absent. This
	// is a deployment configuration bug, not a user error.
	ErrDefaultTenantMissing = errors.New("default tenant is not configured")
	// ErrAlreadyVerified indicates the email was verified previously.
	ErrAlreadyVerified = errors.New("email is already verified")
	// ErrSendFailed indicates an explicitly requested notification could not
	// be dispatched.
	ErrSendFailed = errors.New("could not send verification code")
	// ErrWeakPassword indicates the password fails the strength policy.
	ErrWeakPassword = errors.New("password does not meet the strength policy")
)

// RegistrationService coordinates account creation and email verification.
type RegistrationService struct {
	cfg         *config.AppConfig
	accounts    port.AccountRepository
	tenants     port.TenantRepository
	credentials *CredentialStore
	notifier    port.Notifier
	audit       port.AuditRepository
	hasher      *security.Hasher
	validator   *security.PasswordValidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	tenants port.TenantRepository,
	credentials *CredentialStore,
	notifier port.Notifier,
	audit port.AuditRepository,
	hasher *security.Hasher,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		cfg:         cfg,
		accounts:    accounts,
		tenants:     tenants,
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
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterInput captures the fields accepted by Register.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	TenantSlug  string
	IP          string
	UserAgent   string
}

// RegisterResult reports the created account.
type RegisterResult struct {
	AccountID string
	Message   string
}

// Register creates an unverified account and dispatches a verification code.
// A stale unverified account with the same email is replaced; a verified one
// blocks re-registration.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if existing != nil {
		if existing.IsEmailVerified {
			return nil, ErrEmailTaken
		}
		if err := s.accounts.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("replace stale account: %w", err)
		}
		s.logger.Info("stale unverified account replaced",
			zap.String("account_id", existing.ID),
			zap.String("email", logger.MaskEmail(email)),
		)
	}

	if err := validatePassword(s.validator, input.Password); err != nil {
		return nil, err
	}

	tenant, err := s.resolveTenant(ctx, email, input.TenantSlug)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:              uuid.NewString(),
		Email:           email,
		DisplayName:     strings.TrimSpace(input.DisplayName),
		PasswordHash:    &hash,
		Role:            domain.RoleEndUser,
		TenantID:        &tenant.ID,
		IsActive:        true,
		IsEmailVerified: false,
		CreatedAt:       now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// A concurrent registration can slip in between the lookup and the
		// insert; the unique index on email is the final arbiter.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	// Delivery is best-effort here; the user can always request a resend.
	if err := s.sendVerificationCode(ctx, &account, tenant.Name, IssueMeta{IP: input.IP, UserAgent: input.UserAgent}); err != nil {
		s.logger.Warn("verification code delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	return &RegisterResult{AccountID: account.ID, Message: registrationSuccessMessage}, nil
}

// VerifyOtp redeems the verification code for the given email and marks the
// account verified.
func (s *RegistrationService) VerifyOtp(ctx context.Context, email, code string, meta RequestMeta) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialInvalid
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if _, err := s.credentials.Redeem(ctx, account.ID, domain.PurposeEmailVerification, code); err != nil {
		if errors.Is(err, ErrCredentialExpired) {
			return ErrCredentialInvalid
		}
		return err
	}

	return s.completeVerification(ctx, account, meta)
}

// VerifyEmail redeems a verification code without an email hint, resolving
// the account from the credential itself.
func (s *RegistrationService) VerifyEmail(ctx context.Context, code string, meta RequestMeta) error {
	credential, err := s.credentials.Redeem(ctx, "", domain.PurposeEmailVerification, code)
	if err != nil {
		if errors.Is(err, ErrCredentialExpired) {
			return ErrCredentialInvalid
		}
		return err
	}

	account, err := s.accounts.GetByID(ctx, credential.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialInvalid
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	return s.completeVerification(ctx, account, meta)
}

// ResendVerification invalidates prior codes and dispatches a fresh one. A
// delivery failure is surfaced: the caller explicitly asked for the resend.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string, meta RequestMeta) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if account.IsEmailVerified {
		return ErrAlreadyVerified
	}

	tenantName := s.tenantName(ctx, account.TenantID)

	if err := s.sendVerificationCode(ctx, account, tenantName, IssueMeta{IP: meta.IP, UserAgent: meta.UserAgent}); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	return nil
}

func (s *RegistrationService) completeVerification(ctx context.Context, account *domain.Account, meta RequestMeta) error {
	if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	if err := s.notifier.Send(ctx, port.Notification{
		Template:   port.TemplateWelcome,
		Recipient:  account.Email,
		Name:       account.DisplayName,
		TenantName: s.tenantName(ctx, account.TenantID),
	}); err != nil {
		s.logger.Warn("welcome notification failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	recordAudit(ctx, s.audit, s.logger, domain.AuditEvent{
		ID:         uuid.NewString(),
		Category:   domain.AuditCategoryAuthentication,
		Action:     domain.AuditActionEmailVerified,
		AccountID:  optional(account.ID),
		TenantID:   account.TenantID,
		Success:    true,
		IP:         optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		OccurredAt: s.now().UTC(),
	})

	return nil
}

func (s *RegistrationService) sendVerificationCode(ctx context.Context, account *domain.Account, tenantName string, meta IssueMeta) error {
	code, err := s.credentials.IssueCode(ctx, account.ID, domain.PurposeEmailVerification, meta)
	if err != nil {
		return err
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

	return s.notifier.Send(ctx, port.Notification{
		Template:   port.TemplateVerificationCode,
		Recipient:  account.Email,
		Name:       account.DisplayName,
		TenantName: tenantName,
		Code:       code,
	})
}

// resolveTenant maps an explicit slug, the email domain, or the configured
// default to an active tenant.
func (s *RegistrationService) resolveTenant(ctx context.Context, email, slug string) (*domain.Tenant, error) {
	if slug != "" {
		tenant, err := s.tenants.GetActiveBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTenantNotFound
			}
			return nil, fmt.Errorf("lookup tenant: %w", err)
		}
		return tenant, nil
	}

	derived := s.slugForEmailDomain(email)
	if derived != "" && derived != s.cfg.Tenant.DefaultSlug {
		tenant, err := s.tenants.GetActiveBySlug(ctx, derived)
		if err == nil {
			return tenant, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup tenant: %w", err)
		}
	}

	tenant, err := s.tenants.GetActiveBySlug(ctx, s.cfg.Tenant.DefaultSlug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("default tenant missing",
				zap.String("slug", s.cfg.Tenant.DefaultSlug),
			)
			return nil, ErrDefaultTenantMissing
		}
		return nil, fmt.Errorf("lookup default tenant: %w", err)
	}

	return tenant, nil
}

func (s *RegistrationService) slugForEmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	emailDomain := email[at+1:]
	if mapped, ok := s.cfg.Tenant.DomainSlugs[emailDomain]; ok {
		return mapped
	}
	return s.cfg.Tenant.DefaultSlug
}

func (s *RegistrationService) tenantName(ctx context.Context, tenantID *string) string {
	if tenantID == nil {
		return ""
	}
	tenant, err := s.tenants.GetByID(ctx, *tenantID)
	if err != nil {
		return ""
	}
	return tenant.Name
}

func validatePassword(validator *security.PasswordValidator, password string) error {
	if err := validator.Validate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	return nil
}
