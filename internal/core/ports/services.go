package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"splatchain-ledger/internal/core/domain"
)

// --- Service Ports (Business Logic) ---

// LedgerService is the only way to read or mutate wallets.
type LedgerService interface {
	Create(ctx context.Context, req CreateWalletRequest) (*MutationResult, error)
	Lookup(ctx context.Context, identifier string) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Wallet, error)
	Delete(ctx context.Context, req DeleteRequest) (*MutationResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Edit(ctx context.Context, req EditRequest) (*MutationResult, error)
	Inject(ctx context.Context, req AmountRequest) (*MutationResult, error)
	Burn(ctx context.Context, req AmountRequest) (*MutationResult, error)
	// Reload replaces the in-memory wallets with the durable set.
	Reload(ctx context.Context) (*ReloadResult, error)
	Stats(ctx context.Context) LedgerStats
}

// CreateWalletRequest holds validated input for wallet creation.
type CreateWalletRequest struct {
	Actor          string
	Nickname       string
	Username       string
	Type           string // matched case-insensitively; empty means Person
	InitialBalance int64
	Share          bool
}

// DeleteRequest identifies a wallet to remove.
type DeleteRequest struct {
	Actor      string
	Identifier string
	Force      bool
}

// TransferRequest moves Amount from one wallet to another.
type TransferRequest struct {
	Actor  string
	From   string
	To     string
	Amount int64
	Force  bool
}

// EditRequest is a partial update. Nil fields are left unchanged; an empty
// Username clears it.
type EditRequest struct {
	Actor      string
	Identifier string
	Force      bool
	Claim      bool
	Nickname   *string
	Username   *string
	Type       *string
	Balance    *int64
	Share      *bool
}

// Empty reports whether the request changes nothing.
func (r EditRequest) Empty() bool {
	return !r.Claim && r.Nickname == nil && r.Username == nil && r.Type == nil && r.Balance == nil && r.Share == nil
}

// AmountRequest is used by inject and burn.
type AmountRequest struct {
	Actor      string
	Identifier string
	Amount     int64
	Force      bool
}

// MutationResult carries the before/after snapshots of the mutated wallet.
// Before is nil for create, After is nil for delete. Notification is set
// when the owner must be told about a forced action.
type MutationResult struct {
	Before       *domain.Wallet
	After        *domain.Wallet
	Decision     domain.Decision
	Notification *domain.Notification
}

// OwnerNotified reports whether the mutation produced a notification.
func (r *MutationResult) OwnerNotified() bool {
	return r.Notification != nil
}

// TransferResult adds the destination snapshots to the source result.
type TransferResult struct {
	MutationResult
	DestBefore *domain.Wallet
	DestAfter  *domain.Wallet
}

// ReloadResult summarizes one reconciliation pass.
type ReloadResult struct {
	Loaded   int // records decoded from storage
	Wallets  int // records kept
	Dropped  int // duplicates removed
	Repaired int // records the normalizer changed
}

// LedgerStats is a point-in-time view of the ledger.
type LedgerStats struct {
	Wallets     int   `json:"wallets"`
	TotalSupply int64 `json:"total_supply"`
}

// AuditService records committed mutations.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// NotificationService hands forced-action notices to delivery. Failures are
// logged, never returned.
type NotificationService interface {
	Notify(ctx context.Context, n *domain.Notification)
}

// Notifier delivers a single notification to the owner.
type Notifier interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

// LedgerMetrics receives ledger observations. Implementations must be safe for
// concurrent use.
type LedgerMetrics interface {
	ObserveOperation(op string, code string, d time.Duration)
	ObserveReload(ok bool, dropped int, repaired int)
	SetStats(stats LedgerStats)
	ObserveNotification(outcome string)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(claims ActorClaims) (string, time.Time, error)
	Validate(tokenString string) (*ActorClaims, error)
}

// ActorClaims holds the parsed JWT claims.
type ActorClaims struct {
	Actor    string // <platform>/<handle>
	UserID   string
	ServerID string
}

// BlockChecker is the opaque deny-list gate applied before any operation.
type BlockChecker interface {
	Blocked(claims *ActorClaims) bool
}
