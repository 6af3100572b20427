package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"splatchain-ledger/internal/core/domain"
)

// WalletStore is the durable form of the ledger. Save replaces the whole
// record set; partial writes are never visible to Load.
type WalletStore interface {
	Load(ctx context.Context) ([]domain.WalletRecord, error)
	Save(ctx context.Context, wallets []domain.Wallet) error
	// Location identifies the store in logs and errors.
	Location() string
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByAddress(ctx context.Context, address string, limit int) ([]domain.AuditLog, error)
}

// NotificationQueue is the outbox between the ledger and notification delivery.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n *domain.Notification) error
	// Dequeue blocks up to timeout. Returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.Notification, error)
}

// IdempotencyCache stores mutation responses keyed by Idempotency-Key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Claim reports false when another request holds key.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
