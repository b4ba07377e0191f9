package domain

import "strings"

// ActionKind is a user-initiated lending operation.
type ActionKind string

const (
	ActionDeposit  ActionKind = "deposit"
	ActionBorrow   ActionKind = "borrow"
	ActionRepay    ActionKind = "repay"
	ActionWithdraw ActionKind = "withdraw"
)

// ParseActionKind normalizes user input into an ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.IsValid()
}

// String returns the string representation of ActionKind.
func (k ActionKind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the supported operations.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionDeposit, ActionBorrow, ActionRepay, ActionWithdraw:
		return true
	}
	return false
}
