package postgres

import (
	"context"
	"fmt"
)

// HealthCheck implements ports.HealthChecker for the audit database. It
// probes the audit table itself, so a dropped or unreadable table shows up
// as unhealthy rather than only a lost connection.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM "+auditTable+" LIMIT 1"); err != nil {
		return fmt.Errorf("probing %s: %w", auditTable, err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
