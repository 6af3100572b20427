package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification tells a wallet owner that someone else forced an action on it.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"owner"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerHandle returns the handle the delivery collaborator should message.
func (n *Notification) OwnerHandle() string {
	return IdentityHandle(n.Owner)
}

// NewNotification builds the notice for a forced action on w. w must be the
// wallet actually being mutated, captured before the mutation.
func NewNotification(actor string, w *Wallet, action Action, message string) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Owner:     w.Owner,
		Actor:     actor,
		Action:    action,
		Address:   w.Address,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// DescribeDelete renders the potentially-unauthorized-action text for delete.
func DescribeDelete(actor string, w *Wallet) string {
	return fmt.Sprintf("%s deleted %s.", actor, w.Label())
}

// DescribeTransfer renders the text for a forced transfer out of from.
func DescribeTransfer(actor string, from, to *Wallet, amount int64) string {
	return fmt.Sprintf("%s transferred %d %s from %s to %s.", actor, amount, CurrencySymbol, from.Label(), to.Label())
}

// DescribeEdit renders the text for a forced edit, noting an ownership claim.
func DescribeEdit(actor string, w *Wallet, claimed bool) string {
	if claimed {
		return fmt.Sprintf("%s edited %s and claimed ownership of it.", actor, w.Label())
	}
	return fmt.Sprintf("%s edited %s.", actor, w.Label())
}

// DescribeBurn renders the text for a forced burn.
func DescribeBurn(actor string, w *Wallet, amount int64) string {
	return fmt.Sprintf("%s burned %d %s from %s.", actor, amount, CurrencySymbol, w.Label())
}
