package api

import "github.com/shopspring/decimal"

// DebtEdge states that Debtor owes Creditor Amount.
type DebtEdge struct {
	Debtor   string          `json:"debtor"`
	Creditor string          `json:"creditor"`
	Amount   decimal.Decimal `json:"amount"`
}

// Transfer is one payment of a computed plan that is not persisted.
type Transfer struct {
	Payer    string          `json:"payer"`
	Receiver string          `json:"receiver"`
	Amount   decimal.Decimal `json:"amount"`
}

// Settlement is a persisted pending payment, with display names resolved
// where the party is known.
type Settlement struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"group_id,omitempty"`
	Payer        string          `json:"payer"`
	PayerName    string          `json:"payer_name,omitempty"`
	Receiver     string          `json:"receiver"`
	ReceiverName string          `json:"receiver_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    int64           `json:"created_at"`
	CreatedBy    string          `json:"created_by,omitempty"`
	Note         string          `json:"note,omitempty"`
}

// Balance is a party's net position. Positive means the party is owed.
type Balance struct {
	PartyID string          `json:"party_id"`
	Name    string          `json:"name,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// Share is one participant's part of an expense.
type Share struct {
	Party  string          `json:"party"`
	Amount decimal.Decimal `json:"amount"`
}

// PreviewRequest asks for the settlement plan of the given edges without
// touching storage.
type PreviewRequest struct {
	Edges []*DebtEdge `json:"edges"`
}

type PreviewResponse struct {
	Transfers []*Transfer `json:"transfers"`
	Balances  []*Balance  `json:"balances"`
}

// ReconcileGroupRequest re-nets a group, folding in optional new edges.
type ReconcileGroupRequest struct {
	GroupID string      `json:"group_id"`
	Edges   []*DebtEdge `json:"edges,omitempty"`
}

// ReconcilePairRequest re-nets everything between two users across groups.
// The caller must be one of them.
type ReconcilePairRequest struct {
	UserA string      `json:"user_a"`
	UserB string      `json:"user_b"`
	Edges []*DebtEdge `json:"edges,omitempty"`
}

// ReconcileResponse carries the settlements that now make up the scope.
type ReconcileResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

// RecordSharesRequest records a new expense in a group and re-nets it.
//
// Either Shares lists each participant's amount, or Total is split equally
// across Participants. The payer's own share is allowed and has no effect.
type RecordSharesRequest struct {
	GroupID      string          `json:"group_id"`
	Payer        string          `json:"payer"`
	Shares       []*Share        `json:"shares,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Participants []string        `json:"participants,omitempty"`
}

// ReverseBorrowingsRequest undoes a deleted expense by inserting settlements
// that pay every borrower back. The group is not re-netted.
type ReverseBorrowingsRequest struct {
	GroupID string   `json:"group_id"`
	Payer   string   `json:"payer"`
	Shares  []*Share `json:"shares"`
}

type ReverseBorrowingsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

// MarkSettledRequest removes one settlement once it has been paid. The
// caller must be its payer or receiver.
type MarkSettledRequest struct {
	SettlementID string `json:"settlement_id"`
}

type MarkSettledResponse struct {
	Settlement *Settlement `json:"settlement"`
}

// SettleAllRequest removes every settlement between two users in any group.
// The caller must be one of them.
type SettleAllRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

type SettleAllResponse struct {
	Deleted int64 `json:"deleted"`
}

type ListGroupSettlementsRequest struct {
	GroupID string `json:"group_id"`
}

// ListUserSettlementsRequest lists a user's settlements. UserID defaults to
// the caller; GroupID optionally restricts to one group.
type ListUserSettlementsRequest struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// ListSettlementsResponse carries settlements and the balances they imply.
type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
	Balances    []*Balance    `json:"balances"`
}
