package port

import (
	"context"
	"time"

	"github.com/helioscale/platform-auth/internal/core/domain"
)

// CredentialRepository manages one-time credential records (OTP codes and
// persisted refresh tokens).
type CredentialRepository interface {
	Create(ctx context.Context, credential domain.OneTimeCredential) error
	// GetUnusedByHash returns the unused credential matching the value digest
	// and purpose, optionally scoped to one account (empty accountID matches any).
	GetUnusedByHash(ctx context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string) (*domain.OneTimeCredential, error)
	Consume(ctx context.Context, id string, usedAt time.Time) error
	// InvalidateUnused marks every unused credential of the purpose for the
	// account as used and returns how many rows changed.
	InvalidateUnused(ctx context.Context, accountID string, purpose domain.CredentialPurpose, usedAt time.Time) (int, error)
	// ConsumeAllByHash marks every unused credential matching the digest as
	// used regardless of expiry, returning the affected count.
	ConsumeAllByHash(ctx context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string, usedAt time.Time) (int, error)
	// DeleteExpired purges expired credentials of the purpose for the account.
	DeleteExpired(ctx context.Context, accountID string, purpose domain.CredentialPurpose, before time.Time) (int, error)
}
