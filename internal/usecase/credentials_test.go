package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/helioscale/platform-auth/internal/core/domain"
)

func TestIssueCodeSupersedesPriorCodes(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.store.IssueCode(context.Background(), "acct-1", domain.PurposeEmailVerification, IssueMeta{})
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}
	second, err := env.store.IssueCode(context.Background(), "acct-1", domain.PurposeEmailVerification, IssueMeta{})
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if env.credentials.unusedCount("acct-1", domain.PurposeEmailVerification) != 1 {
		t.Fatal("expected exactly one redeemable code after reissue")
	}

	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposeEmailVerification, first); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected superseded code to fail, got %v", err)
	}
	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposeEmailVerification, second); err != nil {
		t.Fatalf("expected fresh code to redeem, got %v", err)
	}
}

func TestRedeemIsSingleUse(t *testing.T) {
	env := newTestEnv(t)

	code, err := env.store.IssueCode(context.Background(), "acct-1", domain.PurposePasswordReset, IssueMeta{})
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposePasswordReset, code); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposePasswordReset, code); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected second redeem to fail, got %v", err)
	}
}

func TestRedeemExpiredCode(t *testing.T) {
	env := newTestEnv(t)

	code, err := env.store.IssueCode(context.Background(), "acct-1", domain.PurposeEmailVerification, IssueMeta{})
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	env.advance(5*time.Minute + time.Second)

	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposeEmailVerification, code); !errors.Is(err, ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}
}

func TestRedeemScopedToPurposeAndAccount(t *testing.T) {
	env := newTestEnv(t)

	code, err := env.store.IssueCode(context.Background(), "acct-1", domain.PurposeEmailVerification, IssueMeta{})
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if _, err := env.store.Redeem(context.Background(), "acct-1", domain.PurposePasswordReset, code); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected wrong purpose to fail, got %v", err)
	}
	if _, err := env.store.Redeem(context.Background(), "acct-2", domain.PurposeEmailVerification, code); !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected wrong account to fail, got %v", err)
	}
}

func TestStoreRefreshTokenPurgesExpiredRows(t *testing.T) {
	env := newTestEnv(t)

	if err := env.store.StoreRefreshToken(context.Background(), "acct-1", "token-one", env.nowTime.Add(time.Minute), IssueMeta{}); err != nil {
		t.Fatalf("StoreRefreshToken returned error: %v", err)
	}

	env.advance(2 * time.Minute)

	if err := env.store.StoreRefreshToken(context.Background(), "acct-1", "token-two", env.nowTime.Add(24*time.Hour), IssueMeta{}); err != nil {
		t.Fatalf("StoreRefreshToken returned error: %v", err)
	}

	if len(env.credentials.rows) != 1 {
		t.Fatalf("expected expired refresh row to be purged, have %d rows", len(env.credentials.rows))
	}
}

func TestRevokeIgnoresExpiry(t *testing.T) {
	env := newTestEnv(t)

	if err := env.store.StoreRefreshToken(context.Background(), "acct-1", "token-one", env.nowTime.Add(time.Minute), IssueMeta{}); err != nil {
		t.Fatalf("StoreRefreshToken returned error: %v", err)
	}

	env.advance(2 * time.Minute)

	count, err := env.store.Revoke(context.Background(), "acct-1", domain.PurposeRefresh, "token-one")
	if err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one revoked credential, got %d", count)
	}
}
