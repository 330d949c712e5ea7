package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Share is one participant's portion of an expense.
type Share struct {
	Party  string
	Amount decimal.Decimal
}

// ShareEdges turns an expense's per-participant shares into debt edges:
// every participant owes the payer their share.
//
// Shares without a party or with a zero amount are skipped. The payer's own
// share produces a self edge, which netting ignores.
func ShareEdges(payer string, shares []Share) ([]DebtEdge, error) {
	if payer == "" {
		return nil, fmt.Errorf("payer is required")
	}

	edges := make([]DebtEdge, 0, len(shares))
	for _, s := range shares {
		if s.Amount.IsNegative() {
			return nil, fmt.Errorf("share amount for %s cannot be negative", s.Party)
		}
		if s.Party == "" || s.Amount.IsZero() {
			continue
		}
		edges = append(edges, DebtEdge{
			Debtor:   s.Party,
			Creditor: payer,
			Amount:   s.Amount,
		})
	}
	return edges, nil
}

// SplitEqually divides total among participants in whole cents.
// Leftover cents go one each to the first participants, so the shares always
// add up to the total rounded to cents.
func SplitEqually(total decimal.Decimal, participants []string) ([]Share, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("total cannot be negative")
	}

	cents := RoundCents(total).Shift(centPlaces).IntPart()
	n := int64(len(participants))
	base, remainder := cents/n, cents%n

	shares := make([]Share, len(participants))
	for i, p := range participants {
		c := base
		if int64(i) < remainder {
			c++
		}
		shares[i] = Share{Party: p, Amount: decimal.New(c, -centPlaces)}
	}
	return shares, nil
}

// ReverseEdges inverts a set of edges, so that each creditor now owes the
// debtor. Used when an expense is deleted and its borrowings must be undone.
// Self edges are dropped.
func ReverseEdges(edges []DebtEdge) []DebtEdge {
	reversed := make([]DebtEdge, 0, len(edges))
	for _, e := range edges {
		if e.Debtor == e.Creditor {
			continue
		}
		reversed = append(reversed, DebtEdge{
			Debtor:   e.Creditor,
			Creditor: e.Debtor,
			Amount:   e.Amount,
		})
	}
	return reversed
}
