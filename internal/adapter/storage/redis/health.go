package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultMaxBacklog is the outbox depth above which Redis reports unhealthy.
const DefaultMaxBacklog = 1000

// HealthCheck implements ports.HealthChecker for Redis. Besides connectivity
// it fails when the notification outbox has grown past maxBacklog, which means
// the dispatcher has stalled.
type HealthCheck struct {
	client     *goredis.Client
	maxBacklog int64
}

// NewHealthCheck creates a Redis health checker. maxBacklog <= 0 disables the
// outbox check.
func NewHealthCheck(client *goredis.Client, maxBacklog int64) *HealthCheck {
	return &HealthCheck{client: client, maxBacklog: maxBacklog}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return err
	}
	if h.maxBacklog <= 0 {
		return nil
	}
	n, err := h.client.LLen(ctx, notificationQueueKey).Result()
	if err != nil {
		return fmt.Errorf("reading outbox depth: %w", err)
	}
	if n > h.maxBacklog {
		return fmt.Errorf("notification outbox backlog %d exceeds %d", n, h.maxBacklog)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
