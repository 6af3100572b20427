package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"splatchain-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const notificationQueueKey = keyPrefix + "notifications"

// NotificationQueue implements ports.NotificationQueue as a Redis list.
// Producers LPUSH, the dispatcher BRPOPs, so delivery is FIFO.
type NotificationQueue struct {
	client *goredis.Client
	key    string
}

// NewNotificationQueue creates the owner-notification outbox.
func NewNotificationQueue(client *goredis.Client) *NotificationQueue {
	return &NotificationQueue{
		client: client,
		key:    notificationQueueKey,
	}
}

// Enqueue appends n to the outbox.
func (q *NotificationQueue) Enqueue(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis notification enqueue: %w", err)
	}
	return nil
}

// Dequeue waits up to timeout for the oldest notification.
// Returns nil, nil if none arrived in time.
func (q *NotificationQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis notification dequeue: %w", err)
	}

	// res is [key, value]
	var n domain.Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		return nil, fmt.Errorf("decoding notification: %w", err)
	}
	return &n, nil
}

// Len returns the number of notifications waiting for delivery.
func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis notification len: %w", err)
	}
	return n, nil
}
