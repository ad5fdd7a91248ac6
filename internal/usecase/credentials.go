package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/repository"
)

const (
	defaultOTPLength = 6
	defaultOTPTTL    = 5 * time.Minute
)

var (
	// ErrCredentialInvalid indicates no matching unused credential exists.
	ErrCredentialInvalid = errors.New("invalid or expired code")
	// ErrCredentialExpired indicates the credential exists but has expired.
	ErrCredentialExpired = errors.New("code expired")
)

// IssueMeta captures optional request context persisted with a credential.
type IssueMeta struct {
	IP        string
	UserAgent string
}

// CredentialStore issues and redeems one-time credentials: numeric OTP codes
// for verification and reset flows, and persisted refresh token records.
type CredentialStore struct {
	credentials port.CredentialRepository
	otpLength   int
	otpTTL      time.Duration
	now         func() time.Time
}

// NewCredentialStore constructs a store from configuration, falling back to
// defaults for unset values.
func NewCredentialStore(credentials port.CredentialRepository, cfg config.OTPSettings) *CredentialStore {
	length := cfg.Length
	if length <= 0 {
		length = defaultOTPLength
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &CredentialStore{
		credentials: credentials,
		otpLength:   length,
		otpTTL:      ttl,
		now:         time.Now,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *CredentialStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// IssueCode invalidates any unused credential of the purpose for the account
// and creates a fresh numeric code. Earlier codes must never stay redeemable
// once a new one exists. Returns the plaintext code for delivery.
func (s *CredentialStore) IssueCode(ctx context.Context, accountID string, purpose domain.CredentialPurpose, meta IssueMeta) (string, error) {
	now := s.now().UTC()

	if _, err := s.credentials.InvalidateUnused(ctx, accountID, purpose, now); err != nil {
		return "", fmt.Errorf("invalidate prior credentials: %w", err)
	}

	code, err := security.GenerateNumericCode(s.otpLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	credential := domain.OneTimeCredential{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ValueHash: security.HashValue(code),
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpTTL),
		IP:        optional(meta.IP),
		UserAgent: optional(meta.UserAgent),
	}

	if err := s.credentials.Create(ctx, credential); err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}

	return code, nil
}

// StoreRefreshToken persists the signed refresh token as a redeemable
// credential and opportunistically purges the account's expired refresh rows.
func (s *CredentialStore) StoreRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time, meta IssueMeta) error {
	now := s.now().UTC()

	if _, err := s.credentials.DeleteExpired(ctx, accountID, domain.PurposeRefresh, now); err != nil {
		return fmt.Errorf("purge expired refresh credentials: %w", err)
	}

	credential := domain.OneTimeCredential{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ValueHash: security.HashValue(token),
		Purpose:   domain.PurposeRefresh,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		IP:        optional(meta.IP),
		UserAgent: optional(meta.UserAgent),
	}

	if err := s.credentials.Create(ctx, credential); err != nil {
		return fmt.Errorf("store refresh credential: %w", err)
	}

	return nil
}

// Peek returns the unused credential matching the presented value without
// consuming it. An empty accountID matches any account.
func (s *CredentialStore) Peek(ctx context.Context, accountID string, purpose domain.CredentialPurpose, value string) (*domain.OneTimeCredential, error) {
	credential, err := s.credentials.GetUnusedByHash(ctx, accountID, purpose, security.HashValue(value))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCredentialInvalid
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	if credential.IsExpired(s.now().UTC()) {
		return nil, ErrCredentialExpired
	}

	return credential, nil
}

// Redeem consumes the unused credential matching the presented value. A
// second redemption of the same value always fails.
func (s *CredentialStore) Redeem(ctx context.Context, accountID string, purpose domain.CredentialPurpose, value string) (*domain.OneTimeCredential, error) {
	credential, err := s.Peek(ctx, accountID, purpose, value)
	if err != nil {
		return nil, err
	}

	if err := s.Consume(ctx, credential); err != nil {
		return nil, err
	}

	return credential, nil
}

// Consume marks the credential used. A concurrent redemption that wins the
// race surfaces as ErrCredentialInvalid to the loser.
func (s *CredentialStore) Consume(ctx context.Context, credential *domain.OneTimeCredential) error {
	now := s.now().UTC()
	if err := s.credentials.Consume(ctx, credential.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialInvalid
		}
		return fmt.Errorf("consume credential: %w", err)
	}
	credential.Consume(now)
	return nil
}

// Revoke marks matching unused credentials as used without validating
// expiry. Returns how many were revoked.
func (s *CredentialStore) Revoke(ctx context.Context, accountID string, purpose domain.CredentialPurpose, value string) (int, error) {
	count, err := s.credentials.ConsumeAllByHash(ctx, accountID, purpose, security.HashValue(value), s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke credentials: %w", err)
	}
	return count, nil
}

// InvalidateAll marks every unused credential of the purpose for the account
// as used.
func (s *CredentialStore) InvalidateAll(ctx context.Context, accountID string, purpose domain.CredentialPurpose) (int, error) {
	count, err := s.credentials.InvalidateUnused(ctx, accountID, purpose, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("invalidate credentials: %w", err)
	}
	return count, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
