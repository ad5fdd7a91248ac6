package port

import (
	"context"
	"time"

	"github.com/helioscale/platform-auth/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	// RecordFailedLogin atomically increments the failed-attempt counter,
	// applying lockedUntil when the new count reaches the threshold, and
	// returns the new count.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockedUntil time.Time) (int, error)
	// ResetLoginState clears the failed-attempt counter and lock and stamps
	// the last successful login.
	ResetLoginState(ctx context.Context, id string, loginAt time.Time) error
}
