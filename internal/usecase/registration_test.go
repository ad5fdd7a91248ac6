package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
)

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.registration.Register(context.Background(), RegisterInput{
		Email:       "Alice@Corp.Test",
		Password:    testPassword,
		DisplayName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if result.AccountID == "" {
		t.Fatal("expected account id")
	}

	account, err := env.accounts.GetByEmail(context.Background(), "alice@corp.test")
	if err != nil {
		t.Fatalf("expected account to exist: %v", err)
	}
	if account.IsEmailVerified {
		t.Fatal("new account must start unverified")
	}
	if account.Role != domain.RoleEndUser {
		t.Fatalf("expected end user role, got %q", account.Role)
	}
	if account.TenantID == nil || *account.TenantID != "tenant-default" {
		t.Fatalf("expected default tenant, got %v", account.TenantID)
	}

	if len(env.notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(env.notifier.sent))
	}
	sent := env.notifier.sent[0]
	if sent.Template != port.TemplateVerificationCode {
		t.Fatalf("unexpected template %q", sent.Template)
	}
	if len(sent.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", sent.Code)
	}
}

func TestRegisterDerivesTenantFromEmailDomain(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "carol@gmail.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	account, err := env.accounts.GetByEmail(context.Background(), "carol@gmail.com")
	if err != nil {
		t.Fatalf("expected account to exist: %v", err)
	}
	if account.TenantID == nil || *account.TenantID != "tenant-gmail" {
		t.Fatalf("expected gmail tenant, got %v", account.TenantID)
	}
}

func TestRegisterExplicitTenantSlug(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registration.Register(context.Background(), RegisterInput{
		Email:      "dave@corp.test",
		Password:   testPassword,
		TenantSlug: "gmail",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	account, _ := env.accounts.GetByEmail(context.Background(), "dave@corp.test")
	if account.TenantID == nil || *account.TenantID != "tenant-gmail" {
		t.Fatalf("expected explicit tenant, got %v", account.TenantID)
	}

	_, err = env.registration.Register(context.Background(), RegisterInput{
		Email:      "erin@corp.test",
		Password:   testPassword,
		TenantSlug: "missing",
	})
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestRegisterDefaultTenantMissingIsFatal(t *testing.T) {
	env := newTestEnv(t)
	delete(env.tenants.bySlug, "helioscale")

	_, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	})
	if !errors.Is(err, ErrDefaultTenantMissing) {
		t.Fatalf("expected ErrDefaultTenantMissing, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterReplacesStaleUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	second, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("second Register returned error: %v", err)
	}
	if second.AccountID == first.AccountID {
		t.Fatal("expected a fresh account id after replacement")
	}

	if _, err := env.accounts.GetByID(context.Background(), first.AccountID); err == nil {
		t.Fatal("expected stale account to be deleted")
	}
}

func TestRegisterConflictOnVerifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct-1", "alice@corp.test", testPassword, true)

	for i := 0; i < 2; i++ {
		_, err := env.registration.Register(context.Background(), RegisterInput{
			Email:    "alice@corp.test",
			Password: testPassword,
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("attempt %d: expected ErrEmailTaken, got %v", i+1, err)
		}
	}
}

func TestRegisterSucceedsWhenNotificationFails(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.sendErr = errors.New("smtp down")

	result, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("expected registration to succeed despite send failure, got %v", err)
	}
	if result.AccountID == "" {
		t.Fatal("expected account id")
	}
}

func TestVerifyOtpThenLogin(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	code := env.notifier.lastCode()
	if code == "" {
		t.Fatal("expected delivered verification code")
	}

	if err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", code, RequestMeta{}); err != nil {
		t.Fatalf("VerifyOtp returned error: %v", err)
	}

	result, err := env.auth.Login(context.Background(), "alice@corp.test", testPassword, RequestMeta{})
	if err != nil {
		t.Fatalf("Login after verification returned error: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
}

func TestVerifyOtpRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", "000000", RequestMeta{})
	if !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
}

func TestVerifyOtpSecondRedeemFails(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	code := env.notifier.lastCode()

	if err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", code, RequestMeta{}); err != nil {
		t.Fatalf("VerifyOtp returned error: %v", err)
	}
	if err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", code, RequestMeta{}); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid on second redeem, got %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.registration.Register(context.Background(), RegisterInput{
		Email:    "alice@corp.test",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	firstCode := env.notifier.lastCode()

	if err := env.registration.ResendVerification(context.Background(), "alice@corp.test", RequestMeta{}); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}
	secondCode := env.notifier.lastCode()

	// The superseded code must no longer redeem.
	if err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", firstCode, RequestMeta{}); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected stale code to be rejected, got %v", err)
	}
	if err := env.registration.VerifyOtp(context.Background(), "alice@corp.test", secondCode, RequestMeta{}); err != nil {
		t.Fatalf("expected fresh code to redeem, got %v", err)
	}
}

func TestResendVerificationErrors(t *testing.T) {
	env := newTestEnv(t)

	if err := env.registration.ResendVerification(context.Background(), "ghost@corp.test", RequestMeta{}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	env.seedAccount(t, "acct-1", "alice@corp.test", testPassword, true)
	if err := env.registration.ResendVerification(context.Background(), "alice@corp.test", RequestMeta{}); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestResendVerificationSurfacesSendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct-1", "alice@corp.test", testPassword, false)
	env.notifier.sendErr = errors.New("smtp down")

	err := env.registration.ResendVerification(context.Background(), "alice@corp.test", RequestMeta{})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}
