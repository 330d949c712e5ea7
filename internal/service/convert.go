package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/reconcile"
	"github.com/soham-0-0-7/split-slice/internal/storage"
	"github.com/soham-0-0-7/split-slice/pkg/api"
)

// errInvalidArgument marks request validation failures.
var errInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidArgument, fmt.Sprintf(format, args...))
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, reconcile.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, errInvalidArgument),
		errors.Is(err, reconcile.ErrInvalidScope),
		errors.Is(err, calculator.ErrInvalidEdge):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrPermissionDenied):
		return connect.NewError(connect.CodePermissionDenied, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// toDebtEdges validates request edges. Unlike a reconcile run, which drops
// malformed edges, a request carrying one is rejected as a whole.
func toDebtEdges(edges []*api.DebtEdge) ([]calculator.DebtEdge, error) {
	out := make([]calculator.DebtEdge, 0, len(edges))
	for i, e := range edges {
		if e == nil {
			continue
		}
		edge := calculator.DebtEdge{Debtor: e.Debtor, Creditor: e.Creditor, Amount: e.Amount}
		if err := calculator.ValidateEdge(edge); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		out = append(out, edge)
	}
	return out, nil
}

func toShares(shares []*api.Share) []calculator.Share {
	out := make([]calculator.Share, 0, len(shares))
	for _, s := range shares {
		if s != nil {
			out = append(out, calculator.Share{Party: s.Party, Amount: s.Amount})
		}
	}
	return out
}

func settlementEdges(settlements []*models.Settlement) []calculator.DebtEdge {
	edges := make([]calculator.DebtEdge, len(settlements))
	for i, s := range settlements {
		edges[i] = calculator.DebtEdge{Debtor: s.Payer, Creditor: s.Receiver, Amount: s.Amount}
	}
	return edges
}

// toAPIBalances renders balances sorted by party ID, skipping zeros.
func toAPIBalances(balances map[string]decimal.Decimal, names map[string]string) []*api.Balance {
	out := make([]*api.Balance, 0, len(balances))
	for id, amount := range balances {
		if amount.IsZero() {
			continue
		}
		out = append(out, &api.Balance{PartyID: id, Name: names[id], Amount: amount})
	}
	slices.SortFunc(out, func(a, b *api.Balance) int { return cmp.Compare(a.PartyID, b.PartyID) })
	return out
}

func toAPISettlement(s *models.Settlement, names map[string]string) *api.Settlement {
	return &api.Settlement{
		ID:           s.ID,
		GroupID:      s.GroupID,
		Payer:        s.Payer,
		PayerName:    names[s.Payer],
		Receiver:     s.Receiver,
		ReceiverName: names[s.Receiver],
		Amount:       s.Amount,
		CreatedAt:    s.CreatedAt,
		CreatedBy:    s.CreatedBy,
		Note:         s.Note,
	}
}

func toAPISettlements(settlements []*models.Settlement, names map[string]string) []*api.Settlement {
	out := make([]*api.Settlement, len(settlements))
	for i, s := range settlements {
		out[i] = toAPISettlement(s, names)
	}
	return out
}

// resolveNames looks up display names for every party in the settlements.
// Lookup failures are logged and leave names empty.
func (s *SettlementService) resolveNames(ctx context.Context, settlements []*models.Settlement) map[string]string {
	if s.parties == nil || len(settlements) == 0 {
		return nil
	}

	ids := make([]string, 0, 2*len(settlements))
	for _, st := range settlements {
		ids = append(ids, st.Payer, st.Receiver)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	names, err := s.parties.GetPartyNames(ctx, ids)
	if err != nil {
		slog.Warn("Failed to resolve party names", "parties", len(ids), "error", err)
		return nil
	}
	return names
}
