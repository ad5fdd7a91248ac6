package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
	"github.com/helioscale/platform-auth/internal/repository"
)

const tenantsTable = "auth.tenants"

var tenantColumns = []string{
	"id",
	"slug",
	"name",
	"domain",
	"is_active",
	"created_at",
}

// TenantRepository implements port.TenantRepository using PostgreSQL.
type TenantRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTenantRepository wires a PostgreSQL-backed tenant repository.
func NewTenantRepository(exec pgExecutor) *TenantRepository {
	return &TenantRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetActiveBySlug returns the active tenant with the given slug.
func (r *TenantRepository) GetActiveBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	stmt, args, err := r.builder.
		Select(tenantColumns...).
		From(tenantsTable).
		Where(squirrel.Eq{"slug": slug, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select tenant by slug sql: %w", err)
	}

	return r.scanTenant(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByID returns the tenant with the given identifier.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	stmt, args, err := r.builder.
		Select(tenantColumns...).
		From(tenantsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select tenant sql: %w", err)
	}

	return r.scanTenant(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *TenantRepository) scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := row.Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Domain,
		&tenant.IsActive,
		&tenant.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}

	return &tenant, nil
}

var _ port.TenantRepository = (*TenantRepository)(nil)
