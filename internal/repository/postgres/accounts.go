package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/repository"
)

const accountsTable = "auth.accounts"

var accountColumns = []string{
	"id",
	"email",
	"display_name",
	"password_hash",
	"role",
	"tenant_id",
	"is_active",
	"is_email_verified",
	"mfa_enabled",
	"failed_login_attempts",
	"locked_until",
	"last_login_at",
	"password_changed_at",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.DisplayName,
			account.PasswordHash,
			account.Role,
			account.TenantID,
			account.IsActive,
			account.IsEmailVerified,
			account.MFAEnabled,
			account.FailedLoginAttempts,
			account.LockedUntil,
			account.LastLoginAt,
			account.PasswordChangedAt,
			account.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetByEmail retrieves an account by email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}

	account, err := r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Delete removes the account row. Used when re-registering over a stale
// unverified account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored digest and stamps the change time.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkEmailVerified flips the verification flag.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("is_email_verified", true).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordFailedLogin increments the failed-attempt counter in one statement so
// concurrent failures cannot lose updates. The lock is applied when the new
// count reaches the threshold.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockedUntil time.Time) (int, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_login_attempts", squirrel.Expr("failed_login_attempts + 1")).
		Set("locked_until", squirrel.Expr(
			"CASE WHEN failed_login_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END",
			threshold, lockedUntil,
		)).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_login_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record failed login sql: %w", err)
	}

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("record failed login: %w", err)
	}

	return attempts, nil
}

// ResetLoginState clears the failure counter and lock after a successful login.
func (r *AccountRepository) ResetLoginState(ctx context.Context, id string, loginAt time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Set("last_login_at", loginAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset login state sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.Role,
		&account.TenantID,
		&account.IsActive,
		&account.IsEmailVerified,
		&account.MFAEnabled,
		&account.FailedLoginAttempts,
		&account.LockedUntil,
		&account.LastLoginAt,
		&account.PasswordChangedAt,
		&account.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
