package dto

import (
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"
)

// CreateWalletRequest is the request body for wallet creation.
type CreateWalletRequest struct {
	Nickname        string `json:"nickname" binding:"max=100"`
	Username        string `json:"username" binding:"required,wallet_username"`
	Type            string `json:"type" binding:"omitempty,wallet_type"`
	StartingBalance int64  `json:"starting_balance"`
	Share           bool   `json:"share"`
}

// EditWalletRequest is the request body for a partial wallet update. Omitted
// fields are left unchanged; an empty username clears it.
type EditWalletRequest struct {
	Nickname *string `json:"nickname,omitempty" binding:"omitempty,max=100"`
	Username *string `json:"username,omitempty"`
	Type     *string `json:"type,omitempty"`
	Balance  *int64  `json:"balance,omitempty"`
	Share    *bool   `json:"share,omitempty"`
	Claim    bool    `json:"claim"`
	Force    bool    `json:"force"`
}

// AmountRequest is the request body for inject and burn.
type AmountRequest struct {
	Amount int64 `json:"amount"`
	Force  bool  `json:"force"`
}

// TransferRequest is the request body for a transfer.
type TransferRequest struct {
	From   string `json:"from" binding:"required,max=64"`
	To     string `json:"to" binding:"required,max=64"`
	Amount int64  `json:"amount"`
	Force  bool   `json:"force"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	Address  string `json:"address"`
	Nickname string `json:"nickname"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type"`
	Owner    string `json:"owner"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Share    bool   `json:"share"`
}

// MutationResponse carries before/after snapshots of a mutated wallet.
type MutationResponse struct {
	Before        *WalletResponse `json:"before,omitempty"`
	After         *WalletResponse `json:"after,omitempty"`
	Decision      string          `json:"decision"`
	OwnerNotified bool            `json:"owner_notified"`
}

// TransferResponse adds the destination snapshots to a MutationResponse.
type TransferResponse struct {
	MutationResponse
	Amount            int64           `json:"amount"`
	DestinationBefore *WalletResponse `json:"destination_before"`
	DestinationAfter  *WalletResponse `json:"destination_after"`
}

// WalletListResponse wraps the wallets of one owner.
type WalletListResponse struct {
	Owner string           `json:"owner"`
	Items []WalletResponse `json:"items"`
	Total int              `json:"total"`
}

// ReloadResponse reports a reconciliation pass.
type ReloadResponse struct {
	Loaded   int `json:"loaded"`
	Wallets  int `json:"wallets"`
	Dropped  int `json:"dropped"`
	Repaired int `json:"repaired"`
}

// AuditEntryResponse is one entry of a wallet's history.
type AuditEntryResponse struct {
	ID        string `json:"id"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Forced    bool   `json:"forced"`
	Amount    int64  `json:"amount,omitempty"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

// HistoryResponse wraps a wallet's audit entries, newest first.
type HistoryResponse struct {
	Address string               `json:"address"`
	Items   []AuditEntryResponse `json:"items"`
}

// NewWalletResponse converts a wallet; nil stays nil.
func NewWalletResponse(w *domain.Wallet) *WalletResponse {
	if w == nil {
		return nil
	}
	return &WalletResponse{
		Address:  w.Address,
		Nickname: w.Nickname,
		Username: w.Username,
		Type:     string(w.Type),
		Owner:    w.Owner,
		Balance:  w.Balance,
		Currency: domain.CurrencySymbol,
		Share:    w.Share,
	}
}

// NewMutationResponse converts a mutation result.
func NewMutationResponse(res *ports.MutationResult) MutationResponse {
	return MutationResponse{
		Before:        NewWalletResponse(res.Before),
		After:         NewWalletResponse(res.After),
		Decision:      res.Decision.String(),
		OwnerNotified: res.OwnerNotified(),
	}
}

// NewTransferResponse converts a transfer result.
func NewTransferResponse(res *ports.TransferResult, amount int64) TransferResponse {
	return TransferResponse{
		MutationResponse:  NewMutationResponse(&res.MutationResult),
		Amount:            amount,
		DestinationBefore: NewWalletResponse(res.DestBefore),
		DestinationAfter:  NewWalletResponse(res.DestAfter),
	}
}

// NewAuditEntryResponse converts an audit log entry.
func NewAuditEntryResponse(l domain.AuditLog) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        l.ID.String(),
		Actor:     l.Actor,
		Action:    string(l.Action),
		Forced:    l.Forced,
		Amount:    l.Amount,
		Details:   l.Details,
		CreatedAt: l.CreatedAt.Format(time.RFC3339),
	}
}
