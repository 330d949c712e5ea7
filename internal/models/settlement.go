package models

import "github.com/shopspring/decimal"

// Settlement represents one pending payment obligation between two parties.
//
// The set of settlements stored for a scope is the output of the last netting
// run over that scope. Individual rows can also be removed ("mark settled") or
// added (reverse borrowings from a deleted expense) between runs; the next run
// folds them back in as existing obligations.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string `json:"id"`

	// GroupID is the group this settlement belongs to.
	// Empty for settlements produced by a pair scope.
	GroupID string `json:"group_id,omitempty"`

	// Payer is the party who owes the money.
	Payer string `json:"payer"`

	// Receiver is the party who is owed the money.
	Receiver string `json:"receiver"`

	// Amount is the payment amount, always positive and rounded to cents.
	Amount decimal.Decimal `json:"amount"`

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64 `json:"created_at"`

	// CreatedBy is the party ID that triggered the run or insertion.
	CreatedBy string `json:"created_by,omitempty"`

	// Note is an optional description, e.g. the expense a reverse row came from.
	Note string `json:"note,omitempty"`
}

// Involves reports whether the party is the payer or the receiver.
func (s *Settlement) Involves(partyID string) bool {
	return s.Payer == partyID || s.Receiver == partyID
}
