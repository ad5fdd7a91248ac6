package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/helioscale/platform-auth/internal/core/domain"
	"github.com/helioscale/platform-auth/internal/core/port"
)

const auditTable = "auth.audit_log"

// AuditRepository implements port.AuditRepository using PostgreSQL. The table
// is append-only.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository wires a PostgreSQL-backed audit sink.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Record appends one audit event.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	stmt, args, err := r.builder.Insert(auditTable).
		Columns(
			"id",
			"category",
			"action",
			"account_id",
			"tenant_id",
			"success",
			"error_message",
			"ip_address",
			"user_agent",
			"occurred_at",
		).
		Values(
			event.ID,
			event.Category,
			event.Action,
			event.AccountID,
			event.TenantID,
			event.Success,
			event.ErrorMessage,
			event.IP,
			event.UserAgent,
			event.OccurredAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
