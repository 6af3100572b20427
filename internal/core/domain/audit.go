package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionTransfer AuditAction = "TRANSFER"
	AuditActionEdit     AuditAction = "EDIT"
	AuditActionClaim    AuditAction = "CLAIM"
	AuditActionInject   AuditAction = "INJECT"
	AuditActionBurn     AuditAction = "BURN"
	AuditActionReload   AuditAction = "RELOAD"
)

// AuditLog records a single committed ledger mutation.
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	Actor     string      `json:"actor"`
	Action    AuditAction `json:"action"`
	Address   string      `json:"address,omitempty"`
	Forced    bool        `json:"forced"`
	Amount    int64       `json:"amount,omitempty"`
	Details   string      `json:"details,omitempty"` // JSON string
	CreatedAt time.Time   `json:"created_at"`
}

// NewAuditLog stamps a new entry with an ID and the current time.
func NewAuditLog(actor string, action AuditAction, address string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		Address:   address,
		CreatedAt: time.Now().UTC(),
	}
}
