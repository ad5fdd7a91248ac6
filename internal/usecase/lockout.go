package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
)

const (
	defaultMaxFailedAttempts = 5
	defaultLockoutDuration   = 30 * time.Minute
)

// ErrAccountLocked indicates the account is under an active login lock.
var ErrAccountLocked = errors.New("account locked")

// AccountLockedError carries the remaining lock duration for user-facing
// messages. errors.Is matches it against ErrAccountLocked.
type AccountLockedError struct {
	Remaining time.Duration
}

// Error renders the user-safe lockout message.
func (e *AccountLockedError) Error() string {
	minutes := int(math.Ceil(e.Remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Account is locked. Try again in %d minutes.", minutes)
}

// Is reports whether target is the lockout sentinel.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// LockoutTracker counts failed login attempts per account and imposes a timed
// lock once the threshold is reached.
type LockoutTracker struct {
	accounts    port.AccountRepository
	maxAttempts int
	duration    time.Duration
	now         func() time.Time
}

// NewLockoutTracker constructs a tracker from configuration, falling back to
// defaults for unset values.
func NewLockoutTracker(accounts port.AccountRepository, cfg config.LockoutSettings) *LockoutTracker {
	maxAttempts := cfg.MaxFailedAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxFailedAttempts
	}
	duration := cfg.Duration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}
	return &LockoutTracker{
		accounts:    accounts,
		maxAttempts: maxAttempts,
		duration:    duration,
		now:         time.Now,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (t *LockoutTracker) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// Guard fails with AccountLockedError while the account's lock is active.
// It must run before any password comparison.
func (t *LockoutTracker) Guard(account *domain.Account) error {
	if account == nil {
		return nil
	}
	now := t.now().UTC()
	if account.Locked(now) {
		return &AccountLockedError{Remaining: account.LockRemaining(now)}
	}
	return nil
}

// RecordFailure increments the failed-attempt counter. The increment and the
// threshold check happen in one statement on the store, so concurrent
// failures cannot skip the lock. Returns whether the lock engaged.
func (t *LockoutTracker) RecordFailure(ctx context.Context, accountID string) (bool, error) {
	lockedUntil := t.now().UTC().Add(t.duration)
	attempts, err := t.accounts.RecordFailedLogin(ctx, accountID, t.maxAttempts, lockedUntil)
	if err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	return attempts >= t.maxAttempts, nil
}

// RecordSuccess clears the counter and lock and stamps the login time.
func (t *LockoutTracker) RecordSuccess(ctx context.Context, accountID string) error {
	if err := t.accounts.ResetLoginState(ctx, accountID, t.now().UTC()); err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}
	return nil
}
