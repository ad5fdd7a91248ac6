package domain

import "time"

// Role enumerates the static roles an account can carry.
type Role string

const (
	RoleEndUser     Role = "end_user"
	RoleTenantAdmin Role = "tenant_admin"
	RoleSuperAdmin  Role = "super_admin"
)

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  string
	Email               string
	DisplayName         string
	PasswordHash        *string
	Role                Role
	TenantID            *string
	IsActive            bool
	IsEmailVerified     bool
	MFAEnabled          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
}

// Locked reports whether the account is under an active login lock.
func (a Account) Locked(at time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(at)
}

// LockRemaining returns the remaining lock duration, or zero when unlocked.
func (a Account) LockRemaining(at time.Time) time.Duration {
	if !a.Locked(at) {
		return 0
	}
	return a.LockedUntil.Sub(at)
}

// Profile is the user-facing projection returned on login.
type Profile struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	DisplayName     string `json:"name"`
	Role            Role   `json:"role"`
	TenantID        string `json:"tenant_id"`
	IsEmailVerified bool   `json:"is_verified"`
	MFAEnabled      bool   `json:"mfa_enabled"`
}

// NewProfile builds the login projection from an account record.
func NewProfile(account Account) Profile {
	p := Profile{
		ID:              account.ID,
		Email:           account.Email,
		DisplayName:     account.DisplayName,
		Role:            account.Role,
		IsEmailVerified: account.IsEmailVerified,
		MFAEnabled:      account.MFAEnabled,
	}
	if account.TenantID != nil {
		p.TenantID = *account.TenantID
	}
	return p
}
