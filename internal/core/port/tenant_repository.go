package port

import (
	"context"

	"github.com/helioscale/platform-auth/internal/core/domain"
)

// TenantRepository exposes read-only tenant lookups for registration.
type TenantRepository interface {
	GetActiveBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}
