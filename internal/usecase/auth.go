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

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	// Unknown email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated indicates the account has been disabled.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrEmailNotVerified indicates login before email verification.
	ErrEmailNotVerified = errors.New("email address is not verified")
	// ErrInvalidTokenType indicates a token of the wrong kind was presented.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrRefreshTokenNotFound indicates no revocable refresh credential matched.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is the successful login payload returned to the caller.
type LoginResult struct {
	Tokens  TokenPair
	Profile domain.Profile
}

// RequestMeta carries optional client context for audit and credential records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService coordinates login, token refresh, and revocation.
type AuthService struct {
	cfg         *config.AppConfig
	accounts    port.AccountRepository
	credentials *CredentialStore
	lockout     *LockoutTracker
	audit       port.AuditRepository
	hasher      *security.Hasher
	codec       *security.TokenCodec
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	credentials *CredentialStore,
	lockout *LockoutTracker,
	audit port.AuditRepository,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:         cfg,
		accounts:    accounts,
		credentials: credentials,
		lockout:     lockout,
		audit:       audit,
		hasher:      hasher,
		codec:       codec,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login validates credentials and issues a token pair. The lock check runs
// before password comparison; a correct password cannot bypass an active lock.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !account.IsActive {
		return nil, ErrAccountDeactivated
	}

	if err := s.lockout.Guard(account); err != nil {
		s.recordLoginAudit(ctx, account, false, err.Error(), meta)
		return nil, err
	}

	if account.PasswordHash == nil {
		return nil, s.failLogin(ctx, account, "no password on file", meta)
	}

	match, err := s.hasher.Compare(password, *account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, s.failLogin(ctx, account, "password mismatch", meta)
	}

	// Checked after the password so probing cannot reveal verification state
	// of accounts the caller does not control.
	if !account.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := s.lockout.RecordSuccess(ctx, account.ID); err != nil {
		return nil, err
	}

	tokens, err := s.IssueTokenPair(ctx, account, meta)
	if err != nil {
		return nil, err
	}

	s.recordLoginAudit(ctx, account, true, "", meta)
	s.logger.Info("login succeeded",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	return &LoginResult{Tokens: tokens, Profile: domain.NewProfile(*account)}, nil
}

// RefreshTokens rotates a refresh token for a new access+refresh pair. A
// refresh token is single-use; presenting it again after rotation fails.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string, meta RequestMeta) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, ErrCredentialInvalid
	}
	if claims.Kind != security.TokenKindRefresh {
		return nil, ErrInvalidTokenType
	}

	if _, err := s.credentials.Redeem(ctx, claims.Subject, domain.PurposeRefresh, refreshToken); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCredentialInvalid
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountDeactivated
	}

	tokens, err := s.IssueTokenPair(ctx, account, meta)
	if err != nil {
		return nil, err
	}

	return &tokens, nil
}

// RevokeRefreshToken invalidates every unused refresh credential matching the
// presented token. The token is decoded without expiry enforcement so an
// expired token can still be revoked explicitly.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return security.ErrInvalidToken
	}
	if claims.Kind != security.TokenKindRefresh {
		return ErrInvalidTokenType
	}

	count, err := s.credentials.Revoke(ctx, claims.Subject, domain.PurposeRefresh, refreshToken)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRefreshTokenNotFound
	}

	s.logger.Info("refresh token revoked",
		zap.String("account_id", claims.Subject),
		zap.Int("revoked", count),
	)

	return nil
}

// IssueTokenPair signs an access+refresh pair for the account and persists
// the refresh credential.
func (s *AuthService) IssueTokenPair(ctx context.Context, account *domain.Account, meta RequestMeta) (TokenPair, error) {
	input := security.SignInput{
		Subject: account.ID,
		Email:   account.Email,
		Role:    string(account.Role),
	}
	if account.TenantID != nil {
		input.TenantID = *account.TenantID
	}

	input.Kind = security.TokenKindAccess
	access, err := s.codec.Sign(input, s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	input.Kind = security.TokenKindRefresh
	refresh, err := s.codec.Sign(input, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.cfg.JWT.RefreshTokenTTL)
	issueMeta := IssueMeta{IP: meta.IP, UserAgent: meta.UserAgent}
	if err := s.credentials.StoreRefreshToken(ctx, account.ID, refresh, expiresAt, issueMeta); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) failLogin(ctx context.Context, account *domain.Account, reason string, meta RequestMeta) error {
	locked, err := s.lockout.RecordFailure(ctx, account.ID)
	if err != nil {
		return err
	}

	s.recordLoginAudit(ctx, account, false, reason, meta)

	if locked {
		s.logger.Warn("account locked after repeated failures",
			zap.String("account_id", account.ID),
		)
	}

	return ErrInvalidCredentials
}

func (s *AuthService) recordLoginAudit(ctx context.Context, account *domain.Account, success bool, errMsg string, meta RequestMeta) {
	action := domain.AuditActionLogin
	if !success {
		action = domain.AuditActionLoginFailed
	}
	recordAudit(ctx, s.audit, s.logger, domain.AuditEvent{
		ID:           uuid.NewString(),
		Category:     domain.AuditCategoryAuthentication,
		Action:       action,
		AccountID:    optional(account.ID),
		TenantID:     account.TenantID,
		Success:      success,
		ErrorMessage: optional(errMsg),
		IP:           optional(meta.IP),
		UserAgent:    optional(meta.UserAgent),
		OccurredAt:   s.now().UTC(),
	})
}

// recordAudit writes an audit event. A failed write is logged and never
// propagated; audit persistence must not roll back the primary operation.
func recordAudit(ctx context.Context, audit port.AuditRepository, log *zap.Logger, event domain.AuditEvent) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, event); err != nil {
		log.Warn("audit write failed",
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
