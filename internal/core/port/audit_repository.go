package port

import (
	"context"

	"github.com/helioscale/platform-auth/internal/core/domain"
)

// AuditRepository is the write-only sink for security audit events.
type AuditRepository interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
