package calculator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// centPlaces is the precision every balance and payment is rounded to.
// Rounding is half away from zero, so a debtor and a creditor holding the same
// magnitude always round to the same cent.
const centPlaces = 2

// ErrInvalidEdge marks an edge that cannot take part in netting.
var ErrInvalidEdge = errors.New("invalid debt edge")

// DebtEdge represents a debt from one party to another.
type DebtEdge struct {
	Debtor   string // Party who owes
	Creditor string // Party who is owed
	Amount   decimal.Decimal
}

// Transfer is one payment in a settlement plan: Payer pays Receiver Amount.
type Transfer struct {
	Payer    string
	Receiver string
	Amount   decimal.Decimal
}

// position tracks a party's remaining balance during matching.
type position struct {
	id  string
	bal decimal.Decimal
}

// RoundCents rounds an amount to cents, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}

// ValidateEdge reports why an edge is malformed. Self edges and sub-cent
// amounts are not malformed; netting simply ignores them.
func ValidateEdge(e DebtEdge) error {
	switch {
	case e.Debtor == "" || e.Creditor == "":
		return fmt.Errorf("%w: missing party", ErrInvalidEdge)
	case e.Amount.IsNegative():
		return fmt.Errorf("%w: negative amount %s", ErrInvalidEdge, e.Amount)
	}
	return nil
}

// Nettable reports whether an edge contributes to balances: both parties
// set, distinct, and an amount that is positive at cent precision.
func Nettable(e DebtEdge) bool {
	if ValidateEdge(e) != nil || e.Debtor == e.Creditor {
		return false
	}
	return !RoundCents(e.Amount).IsZero()
}

// Balances computes each party's net balance rounded to cents.
// Positive = owed money, negative = owes money. Parties that only appear on
// ignored edges have no entry.
func Balances(edges []DebtEdge) map[string]decimal.Decimal {
	net := make(map[string]decimal.Decimal)
	for _, e := range edges {
		if !Nettable(e) {
			continue
		}
		net[e.Debtor] = net[e.Debtor].Sub(e.Amount)
		net[e.Creditor] = net[e.Creditor].Add(e.Amount)
	}
	for id, bal := range net {
		net[id] = RoundCents(bal)
	}
	return net
}

// Net reduces a set of debt edges to the minimal list of transfers that
// settles every balance.
//
// Algorithm:
// - Net balances per party, rounded to cents
// - Creditors sorted largest first, debtors most negative first, ties by party ID
// - Greedy: the current debtor pays the current creditor min(credit, debt),
//   advancing whichever side reaches zero
// - Transfers between the same ordered pair are merged
//
// Every step settles at least one party, so the result has at most
// creditors+debtors-1 transfers. Transfers are returned in creation order.
func Net(edges []DebtEdge) []Transfer {
	var creditors, debtors []*position
	for id, bal := range Balances(edges) {
		switch bal.Sign() {
		case 1:
			creditors = append(creditors, &position{id: id, bal: bal})
		case -1:
			debtors = append(debtors, &position{id: id, bal: bal})
		}
	}

	// Largest creditor first
	slices.SortFunc(creditors, func(a, b *position) int {
		if c := b.bal.Cmp(a.bal); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	// Largest debtor (most negative) first
	slices.SortFunc(debtors, func(a, b *position) int {
		if c := a.bal.Cmp(b.bal); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})

	var matches []Transfer
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		cred := creditors[ci]
		debt := debtors[di]

		payAmt := decimal.Min(cred.bal, debt.bal.Neg())
		if !payAmt.IsPositive() {
			break
		}

		matches = append(matches, Transfer{
			Payer:    debt.id,
			Receiver: cred.id,
			Amount:   RoundCents(payAmt),
		})

		cred.bal = RoundCents(cred.bal.Sub(payAmt))
		debt.bal = RoundCents(debt.bal.Add(payAmt))

		if !cred.bal.IsPositive() {
			ci++
		}
		if !debt.bal.IsNegative() {
			di++
		}
	}

	return consolidate(matches)
}

// consolidate merges transfers between the same ordered pair, keeping the
// position of the first one, and drops totals that round to zero.
func consolidate(matches []Transfer) []Transfer {
	index := make(map[[2]string]int, len(matches))
	merged := make([]Transfer, 0, len(matches))
	for _, m := range matches {
		key := [2]string{m.Payer, m.Receiver}
		if i, ok := index[key]; ok {
			merged[i].Amount = merged[i].Amount.Add(m.Amount)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, m)
	}

	result := merged[:0]
	for _, t := range merged {
		t.Amount = RoundCents(t.Amount)
		if t.Amount.IsPositive() {
			result = append(result, t)
		}
	}
	return result
}

// EdgesFromTransfers converts transfers back into debt edges, e.g. to feed a
// previous plan into a new netting run.
func EdgesFromTransfers(transfers []Transfer) []DebtEdge {
	edges := make([]DebtEdge, len(transfers))
	for i, t := range transfers {
		edges[i] = DebtEdge{Debtor: t.Payer, Creditor: t.Receiver, Amount: t.Amount}
	}
	return edges
}
