package postgres

import (
	"context"
	"fmt"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	var details *string
	if log.Details != "" {
		details = &log.Details
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ledger_audit_logs (id, actor, action, address, forced, amount, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ID, log.Actor, string(log.Action), log.Address,
		log.Forced, log.Amount, details, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// ListByAddress returns the newest entries for a wallet first.
func (r *auditRepo) ListByAddress(ctx context.Context, address string, limit int) ([]domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, actor, action, address, forced, amount, COALESCE(details::text, ''), created_at
		 FROM ledger_audit_logs
		 WHERE address = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		address, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditLog, error) {
		var l domain.AuditLog
		var action string
		err := row.Scan(&l.ID, &l.Actor, &action, &l.Address, &l.Forced, &l.Amount, &l.Details, &l.CreatedAt)
		l.Action = domain.AuditAction(action)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning audit logs: %w", err)
	}
	return logs, nil
}
