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

const credentialsTable = "auth.one_time_credentials"

var credentialColumns = []string{
	"id",
	"account_id",
	"value_hash",
	"purpose",
	"created_at",
	"expires_at",
	"used",
	"used_at",
	"ip_address",
	"user_agent",
}

// CredentialRepository implements port.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository wires a PostgreSQL-backed credential repository.
func NewCredentialRepository(exec pgExecutor) *CredentialRepository {
	repo := &CredentialRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *CredentialRepository) WithTx(tx pgx.Tx) *CredentialRepository {
	if tx == nil {
		return r
	}
	return &CredentialRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a one-time credential row.
func (r *CredentialRepository) Create(ctx context.Context, credential domain.OneTimeCredential) error {
	stmt, args, err := r.builder.Insert(credentialsTable).
		Columns(credentialColumns...).
		Values(
			credential.ID,
			credential.AccountID,
			credential.ValueHash,
			credential.Purpose,
			credential.CreatedAt,
			credential.ExpiresAt,
			credential.Used,
			credential.UsedAt,
			credential.IP,
			credential.UserAgent,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// GetUnusedByHash returns the unused credential matching the digest and
// purpose. An empty accountID matches credentials of any account.
func (r *CredentialRepository) GetUnusedByHash(ctx context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string) (*domain.OneTimeCredential, error) {
	conditions := squirrel.And{
		squirrel.Eq{"value_hash": valueHash},
		squirrel.Eq{"purpose": purpose},
		squirrel.Eq{"used": false},
	}
	if accountID != "" {
		conditions = append(conditions, squirrel.Eq{"account_id": accountID})
	}

	stmt, args, err := r.builder.
		Select(credentialColumns...).
		From(credentialsTable).
		Where(conditions).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select credential sql: %w", err)
	}

	var credential domain.OneTimeCredential
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&credential.ID,
		&credential.AccountID,
		&credential.ValueHash,
		&credential.Purpose,
		&credential.CreatedAt,
		&credential.ExpiresAt,
		&credential.Used,
		&credential.UsedAt,
		&credential.IP,
		&credential.UserAgent,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	return &credential, nil
}

// Consume marks one credential as used. Only an unused row transitions, so a
// second redeem of the same credential reports ErrNotFound.
func (r *CredentialRepository) Consume(ctx context.Context, id string, usedAt time.Time) error {
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("used", true).
		Set("used_at", usedAt).
		Where(squirrel.Eq{"id": id, "used": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume credential sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// InvalidateUnused marks every unused credential of the purpose for the
// account as used.
func (r *CredentialRepository) InvalidateUnused(ctx context.Context, accountID string, purpose domain.CredentialPurpose, usedAt time.Time) (int, error) {
	stmt, args, err := r.builder.Update(credentialsTable).
		Set("used", true).
		Set("used_at", usedAt).
		Where(squirrel.Eq{
			"account_id": accountID,
			"purpose":    purpose,
			"used":       false,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build invalidate credentials sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidate credentials: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ConsumeAllByHash marks every unused credential matching the digest as used
// regardless of expiry.
func (r *CredentialRepository) ConsumeAllByHash(ctx context.Context, accountID string, purpose domain.CredentialPurpose, valueHash string, usedAt time.Time) (int, error) {
	conditions := squirrel.And{
		squirrel.Eq{"value_hash": valueHash},
		squirrel.Eq{"purpose": purpose},
		squirrel.Eq{"used": false},
	}
	if accountID != "" {
		conditions = append(conditions, squirrel.Eq{"account_id": accountID})
	}

	stmt, args, err := r.builder.Update(credentialsTable).
		Set("used", true).
		Set("used_at", usedAt).
		Where(conditions).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build consume by hash sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("consume by hash: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteExpired purges expired credentials of the purpose for the account.
func (r *CredentialRepository) DeleteExpired(ctx context.Context, accountID string, purpose domain.CredentialPurpose, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(credentialsTable).
		Where(squirrel.And{
			squirrel.Eq{"account_id": accountID},
			squirrel.Eq{"purpose": purpose},
			squirrel.Lt{"expires_at": before},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired credentials: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.CredentialRepository = (*CredentialRepository)(nil)
