package domain

import "strings"

// WalletType classifies who holds a wallet.
type WalletType string

const (
	WalletTypePerson   WalletType = "Person"
	WalletTypeBusiness WalletType = "Business"
)

const (
	// AddressLength is the number of hex characters in a wallet address.
	AddressLength = 40
	// UsernameSuffix terminates every non-empty username.
	UsernameSuffix = ".ink"
	// CurrencySymbol is used in human-readable messages.
	CurrencySymbol = "SPLC"
)

// Wallet is a single ledger account.
type Wallet struct {
	Address  string     `json:"address"`
	Nickname string     `json:"nickname"`
	Username string     `json:"username"`
	Type     WalletType `json:"type"`
	Owner    string     `json:"owner"` // <platform>/<handle>
	Balance  int64      `json:"balance"`
	Share    bool       `json:"share"`
}

// WalletRecord is a wallet as decoded from durable storage, before validation.
// Balance keeps its raw text so the normalizer can repair it.
type WalletRecord struct {
	Address  string
	Nickname string
	Username string
	Type     string
	Owner    string
	Balance  string
	Share    bool
}

// IsOwnedBy reports whether actor is the wallet's owner.
func (w *Wallet) IsOwnedBy(actor string) bool {
	return w.Owner == actor
}

// Matches reports whether identifier names this wallet by address or username.
func (w *Wallet) Matches(identifier string) bool {
	if identifier == "" {
		return false
	}
	return w.Address == identifier || w.Username == identifier
}

// Label is the name used for the wallet in messages: its username, or its
// address when it has none.
func (w *Wallet) Label() string {
	if w.Username != "" {
		return w.Username
	}
	return w.Address
}

// OwnerHandle returns the handle part of the owner identity.
func (w *Wallet) OwnerHandle() string {
	return IdentityHandle(w.Owner)
}

// Clone returns a copy that shares no state with w.
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}

// ToRecord converts the wallet back into its durable representation.
func (w *Wallet) ToRecord() WalletRecord {
	return WalletRecord{
		Address:  w.Address,
		Nickname: w.Nickname,
		Username: w.Username,
		Type:     string(w.Type),
		Owner:    w.Owner,
		Balance:  formatBalance(w.Balance),
		Share:    w.Share,
	}
}

// IdentityHandle returns the part of "<platform>/<handle>" after the slash.
func IdentityHandle(identity string) string {
	if _, handle, ok := strings.Cut(identity, "/"); ok {
		return handle
	}
	return identity
}

// ValidIdentity reports whether identity has the "<platform>/<handle>" form.
func ValidIdentity(identity string) bool {
	platform, handle, ok := strings.Cut(identity, "/")
	return ok && platform != "" && handle != "" && !strings.Contains(handle, "/")
}
