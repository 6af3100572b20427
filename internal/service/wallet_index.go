package service

import "splatchain-ledger/internal/core/domain"

// walletIndex provides lookup by address and by non-empty username over one
// committed wallet set. It is rebuilt whenever the set is replaced.
type walletIndex struct {
	byAddress  map[string]*domain.Wallet
	byUsername map[string]*domain.Wallet
}

func newWalletIndex(wallets []*domain.Wallet) *walletIndex {
	idx := &walletIndex{
		byAddress:  make(map[string]*domain.Wallet, len(wallets)),
		byUsername: make(map[string]*domain.Wallet, len(wallets)),
	}
	for _, w := range wallets {
		idx.add(w)
	}
	return idx
}

func (idx *walletIndex) add(w *domain.Wallet) {
	idx.byAddress[w.Address] = w
	if w.Username != "" {
		idx.byUsername[w.Username] = w
	}
}

// find resolves an identifier as an address first, then as a username.
func (idx *walletIndex) find(identifier string) *domain.Wallet {
	if identifier == "" {
		return nil
	}
	if w, ok := idx.byAddress[identifier]; ok {
		return w
	}
	return idx.byUsername[identifier]
}

// duplicateField reports which key of candidate collides with a wallet other
// than the one at excludeAddress. Returns "" when there is no collision.
func (idx *walletIndex) duplicateField(candidate *domain.Wallet, excludeAddress string) string {
	if w, ok := idx.byAddress[candidate.Address]; ok && w.Address != excludeAddress {
		return "address"
	}
	if candidate.Username != "" {
		if w, ok := idx.byUsername[candidate.Username]; ok && w.Address != excludeAddress {
			return "username"
		}
	}
	return ""
}

func (idx *walletIndex) hasAddress(address string) bool {
	_, ok := idx.byAddress[address]
	return ok
}
