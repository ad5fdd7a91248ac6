package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/infra/config"
	"github.com/helioscale/platform-auth/internal/infra/security"
	"github.com/helioscale/platform-auth/internal/repository"
)

const (
	testPassword    = "Str0ng!PassWord"
	testNewPassword = "NewStr0ng!PassWord"
)

type memAccounts struct {
	byID map[string]domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[string]domain.Account)}
}

func (m *memAccounts) Create(_ context.Context, account domain.Account) error {
	m.byID[account.ID] = account
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := account
	return &copied, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, account := range m.byID {
		if account.Email == email {
			copied := account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = &passwordHash
	account.PasswordChangedAt = &changedAt
	m.byID[id] = account
	return nil
}

func (m *memAccounts) MarkEmailVerified(_ context.Context, id string) error {
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.IsEmailVerified = true
	m.byID[id] = account
	return nil
}

func (m *memAccounts) RecordFailedLogin(_ context.Context, id string, threshold int, lockedUntil time.Time) (int, error) {
	account, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= threshold {
		until := lockedUntil
		account.LockedUntil = &until
	}
	m.byID[id] = account
	return account.FailedLoginAttempts, nil
}

func (m *memAccounts) ResetLoginState(_ context.Context, id string, loginAt time.Time) error {
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	at := loginAt
	account.LastLoginAt = &at
	m.byID[id] = account
	return nil
}

type memTenants struct {
	bySlug map[string]domain.Tenant
}

func newMemTenants(tenants ...domain.Tenant) *memTenants {
	m := &memTenants{bySlug: make(map[string]domain.Tenant)}
	for _, tenant := range tenants {
		m.bySlug[tenant.Slug] = tenant
	}
	return m
}

func (m *memTenants) GetActiveBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	tenant, ok := m.bySlug[slug]
	if !ok || !tenant.IsActive {
		return nil, repository.ErrNotFound
	}
	copied := tenant
	return &copied, nil
}

func (m *memTenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	for _, tenant := range m.bySlug {
		if tenant.ID == id {
			copied := tenant
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memCredentials struct {
	rows map[string]domain.OneTimeCredential
}

func newMemCredentials() *memCredentials {
	return &memCredentials{rows: make(map[string]domain.OneTimeCredential)}
}

func (m *memCredentials) Create(_ context.Context, credential domain.OneTimeCredential) error {
	m.rows[credential.ID] = credential
	return nil
}

func (m *memCredentials) GetUnusedByHash(_ context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string) (*domain.OneTimeCredential, error) {
	for _, row := range m.rows {
		if row.Used || row.Purpose != purpose || row.ValueHash != valueHash {
			continue
		}
		if accountID != "" && row.AccountID != accountID {
			continue
		}
		copied := row
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memCredentials) Consume(_ context.Context, id string, usedAt time.Time) error {
	row, ok := m.rows[id]
	if !ok || row.Used {
		return repository.ErrNotFound
	}
	row.Used = true
	at := usedAt
	row.UsedAt = &at
	m.rows[id] = row
	return nil
}

func (m *memCredentials) InvalidateUnused(_ context.Context, accountID string, purpose domain.CredentialPurpose, usedAt time.Time) (int, error) {
	count := 0
	for id, row := range m.rows {
		if row.Used || row.Purpose != purpose || row.AccountID != accountID {
			continue
		}
		row.Used = true
		at := usedAt
		row.UsedAt = &at
		m.rows[id] = row
		count++
	}
	return count, nil
}

func (m *memCredentials) ConsumeAllByHash(_ context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string, usedAt time.Time) (int, error) {
	count := 0
	for id, row := range m.rows {
		if row.Used || row.Purpose != purpose || row.ValueHash != valueHash {
			continue
		}
		if accountID != "" && row.AccountID != accountID {
			continue
		}
		row.Used = true
		at := usedAt
		row.UsedAt = &at
		m.rows[id] = row
		count++
	}
	return count, nil
}

func (m *memCredentials) DeleteExpired(_ context.Context, accountID string, purpose domain.CredentialPurpose, before time.Time) (int, error) {
	count := 0
	for id, row := range m.rows {
		if row.Purpose != purpose || row.AccountID != accountID {
			continue
		}
		if row.ExpiresAt.Before(before) {
			delete(m.rows, id)
			count++
		}
	}
	return count, nil
}

func (m *memCredentials) unusedCount(accountID string, purpose domain.CredentialPurpose) int {
	count := 0
	for _, row := range m.rows {
		if !row.Used && row.AccountID == accountID && row.Purpose == purpose {
			count++
		}
	}
	return count
}

type memAudit struct {
	events []domain.AuditEvent
}

func (m *memAudit) Record(_ context.Context, event domain.AuditEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) lastAction() string {
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1].Action
}

type memNotifier struct {
	sent    []port.Notification
	sendErr error
}

func (m *memNotifier) Send(_ context.Context, notification port.Notification) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, notification)
	return nil
}

func (m *memNotifier) lastCode() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Code
}

// testEnv wires the full service graph on in-memory stores with a movable
// clock.
type testEnv struct {
	cfg          *config.AppConfig
	accounts     *memAccounts
	tenants      *memTenants
	credentials  *memCredentials
	audit        *memAudit
	notifier     *memNotifier
	hasher       *security.Hasher
	codec        *security.TokenCodec
	store        *CredentialStore
	lockout      *LockoutTracker
	auth         *AuthService
	registration *RegistrationService
	password     *PasswordService
	nowTime      time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.nowTime = e.nowTime.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{
		JWT: config.JWTSettings{
			SigningSecret:   "unit-test-secret",
			Issuer:          "platform-auth",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Bcrypt:  config.BcryptSettings{Cost: 4},
		Lockout: config.LockoutSettings{MaxFailedAttempts: 5, Duration: 30 * time.Minute},
		OTP:     config.OTPSettings{Length: 6, TTL: 5 * time.Minute},
		Tenant: config.TenantSettings{
			DefaultSlug: "helioscale",
			DomainSlugs: map[string]string{"gmail.com": "gmail"},
		},
	}

	codec, err := security.NewTokenCodec(cfg.JWT.SigningSecret, cfg.JWT.Issuer)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}

	env := &testEnv{
		cfg:         cfg,
		accounts:    newMemAccounts(),
		tenants:     newMemTenants(),
		credentials: newMemCredentials(),
		audit:       &memAudit{},
		notifier:    &memNotifier{},
		hasher:      security.NewHasher(cfg.Bcrypt.Cost),
		codec:       codec,
		nowTime:     time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	env.tenants.bySlug["helioscale"] = domain.Tenant{
		ID: "tenant-default", Slug: "helioscale", Name: "HelioScale", IsActive: true,
	}
	env.tenants.bySlug["gmail"] = domain.Tenant{
		ID: "tenant-gmail", Slug: "gmail", Name: "Gmail Users", IsActive: true,
	}

	clock := func() time.Time { return env.nowTime }
	log := zaptest.NewLogger(t)
	validator := security.NewPasswordValidator(
		security.MinLengthRule(8),
		security.RequireUppercaseRule(),
		security.RequireLowercaseRule(),
		security.RequireDigitRule(),
		security.RequireSymbolRule(),
	)

	env.store = NewCredentialStore(env.credentials, cfg.OTP)
	env.store.WithClock(clock)

	env.lockout = NewLockoutTracker(env.accounts, cfg.Lockout)
	env.lockout.WithClock(clock)

	env.auth = NewAuthService(cfg, env.accounts, env.store, env.lockout, env.audit, env.hasher, codec, log)
	env.auth.WithClock(clock)

	env.registration = NewRegistrationService(cfg, env.accounts, env.tenants, env.store, env.notifier, env.audit, env.hasher, validator, log)
	env.registration.WithClock(clock)

	env.password = NewPasswordService(cfg, env.accounts, env.store, env.notifier, env.audit, env.hasher, validator, log)
	env.password.WithClock(clock)

	return env
}

// seedAccount registers a verified account directly in the store.
func (e *testEnv) seedAccount(t *testing.T, id, email, password string, verified bool) domain.Account {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	tenantID := "tenant-default"
	account := domain.Account{
		ID:              id,
		Email:           email,
		DisplayName:     "Test User",
		PasswordHash:    &hash,
		Role:            domain.RoleEndUser,
		TenantID:        &tenantID,
		IsActive:        true,
		IsEmailVerified: verified,
		CreatedAt:       e.nowTime,
	}
	e.accounts.byID[id] = account
	return account
}
