package domain

import "fmt"

// Action is a ledger mutation subject to ownership checks.
type Action string

const (
	ActionCreate   Action = "create"
	ActionDelete   Action = "delete"
	ActionTransfer Action = "transfer"
	ActionEdit     Action = "edit"
	ActionInject   Action = "inject"
	ActionBurn     Action = "burn"
)

// Destructive reports whether a forced non-owner use of the action must be
// reported to the owner. Injection only ever credits a wallet.
func (a Action) Destructive() bool {
	return a != ActionInject && a != ActionCreate
}

func (a Action) verb() string {
	switch a {
	case ActionTransfer:
		return "transfer from"
	case ActionInject:
		return "inject " + CurrencySymbol + " into"
	case ActionBurn:
		return "burn " + CurrencySymbol + " from"
	default:
		return string(a)
	}
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	DecisionDenied Decision = iota
	// DecisionAllowedSilent: the actor owns the wallet.
	DecisionAllowedSilent
	// DecisionAllowedNotify: forced by a non-owner; the owner must be told.
	DecisionAllowedNotify
	// DecisionAllowedForcedSilent: forced by a non-owner on a shared wallet,
	// or a non-destructive action; no notification.
	DecisionAllowedForcedSilent
)

func (d Decision) String() string {
	switch d {
	case DecisionAllowedSilent:
		return "allowed"
	case DecisionAllowedNotify:
		return "allowed_notify"
	case DecisionAllowedForcedSilent:
		return "allowed_forced"
	default:
		return "denied"
	}
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool {
	return d != DecisionDenied
}

// Forced reports whether the action was taken by a non-owner.
func (d Decision) Forced() bool {
	return d == DecisionAllowedNotify || d == DecisionAllowedForcedSilent
}

// Authorization is the result of Authorize. Hint explains a denial.
type Authorization struct {
	Decision Decision
	Hint     string
	Shared   bool
}

// Authorize decides whether actor may perform action on w. A non-owner needs
// force; sharing only suppresses the owner notification and never grants
// permission on its own.
func Authorize(actor string, w *Wallet, action Action, force bool) Authorization {
	if w.IsOwnedBy(actor) {
		return Authorization{Decision: DecisionAllowedSilent, Shared: w.Share}
	}

	if !force {
		return Authorization{
			Decision: DecisionDenied,
			Hint:     denialHint(w, action),
			Shared:   w.Share,
		}
	}

	if w.Share || !action.Destructive() {
		return Authorization{Decision: DecisionAllowedForcedSilent, Shared: w.Share}
	}
	return Authorization{Decision: DecisionAllowedNotify, Shared: w.Share}
}

func denialHint(w *Wallet, action Action) string {
	msg := fmt.Sprintf("You tried to %s a wallet that you don't own. If you really meant that, try again with force set to true.", action.verb())

	switch {
	case !action.Destructive():
		return msg + " Forcing this is not destructive, so the wallet's owner will not be notified."
	case w.Share:
		return msg + fmt.Sprintf(" This wallet has sharing enabled, so its owner will not be notified, but sharing does NOT mean you can %s it.", action.verb())
	default:
		return msg + " Performing destructive actions on a wallet you don't own will notify its owner."
	}
}
