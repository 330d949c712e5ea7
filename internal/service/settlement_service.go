package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/soham-0-0-7/split-slice/internal/auth"
	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/middleware"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/reconcile"
	"github.com/soham-0-0-7/split-slice/internal/storage"
	"github.com/soham-0-0-7/split-slice/pkg/api"
	"github.com/soham-0-0-7/split-slice/pkg/api/apiconnect"
)

// SettlementService implements the Connect SettlementService
type SettlementService struct {
	apiconnect.UnimplementedSettlementServiceHandler
	store      storage.SettlementStore
	parties    storage.PartyStore
	reconciler *reconcile.Reconciler
	authz      Authorizer
}

// NewSettlementService creates a SettlementService. parties may be nil, in
// which case settlements carry no display names. A nil authz allows any
// authenticated caller.
func NewSettlementService(store storage.SettlementStore, parties storage.PartyStore, reconciler *reconcile.Reconciler, authz Authorizer) *SettlementService {
	if authz == nil {
		authz = AllowAuthenticated{}
	}
	return &SettlementService{
		store:      store,
		parties:    parties,
		reconciler: reconciler,
		authz:      authz,
	}
}

// caller returns the authenticated user and a context that records them as
// the actor of any settlement changes.
func caller(ctx context.Context) (context.Context, string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return ctx, "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return reconcile.WithActor(ctx, userID), userID, nil
}

// requirePairMember checks that the caller is one of the two users.
func requirePairMember(userID, userA, userB string) error {
	if userID != userA && userID != userB {
		return ErrPermissionDenied
	}
	return nil
}

// Preview computes the settlement plan for the given edges without
// persisting anything.
func (s *SettlementService) Preview(ctx context.Context, req *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error) {
	slog.Info("Preview request received", "edges", len(req.Msg.Edges))

	edges, err := toDebtEdges(req.Msg.Edges)
	if err != nil {
		return nil, toConnectError(err)
	}

	transfers := calculator.Net(edges)
	out := make([]*api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = &api.Transfer{Payer: t.Payer, Receiver: t.Receiver, Amount: t.Amount}
	}

	return connect.NewResponse(&api.PreviewResponse{
		Transfers: out,
		Balances:  toAPIBalances(calculator.Balances(edges), nil),
	}), nil
}

// ReconcileGroup re-nets a group's settlements with optional new edges.
func (s *SettlementService) ReconcileGroup(ctx context.Context, req *connect.Request[api.ReconcileGroupRequest]) (*connect.Response[api.ReconcileResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ReconcileGroup request received",
		"group_id", req.Msg.GroupID,
		"edges", len(req.Msg.Edges),
	)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(invalidArgument("group_id is required"))
	}
	edges, err := toDebtEdges(req.Msg.Edges)
	if err != nil {
		return nil, toConnectError(err)
	}

	return s.reconcileGroup(ctx, userID, req.Msg.GroupID, edges)
}

func (s *SettlementService) reconcileGroup(ctx context.Context, userID, groupID string, edges []calculator.DebtEdge) (*connect.Response[api.ReconcileResponse], error) {
	if err := s.authz.AuthorizeGroup(ctx, userID, groupID); err != nil {
		return nil, toConnectError(err)
	}

	settlements, err := s.reconciler.Reconcile(ctx, models.GroupScope(groupID), edges)
	if err != nil {
		slog.Error("ReconcileGroup failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ReconcileResponse{
		Settlements: toAPISettlements(settlements, s.resolveNames(ctx, settlements)),
	}), nil
}

// ReconcilePair re-nets every settlement between the caller and another user.
func (s *SettlementService) ReconcilePair(ctx context.Context, req *connect.Request[api.ReconcilePairRequest]) (*connect.Response[api.ReconcileResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ReconcilePair request received",
		"user_a", req.Msg.UserA,
		"user_b", req.Msg.UserB,
		"edges", len(req.Msg.Edges),
	)

	scope := models.PairScope(req.Msg.UserA, req.Msg.UserB)
	if err := scope.Validate(); err != nil {
		return nil, toConnectError(invalidArgument("%v", err))
	}
	if err := requirePairMember(userID, scope.UserA, scope.UserB); err != nil {
		return nil, toConnectError(err)
	}
	edges, err := toDebtEdges(req.Msg.Edges)
	if err != nil {
		return nil, toConnectError(err)
	}

	settlements, err := s.reconciler.Reconcile(ctx, scope, edges)
	if err != nil {
		slog.Error("ReconcilePair failed", "scope", scope.Key(), "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ReconcileResponse{
		Settlements: toAPISettlements(settlements, s.resolveNames(ctx, settlements)),
	}), nil
}

// RecordShares turns a new expense into debt edges and re-nets its group.
func (s *SettlementService) RecordShares(ctx context.Context, req *connect.Request[api.RecordSharesRequest]) (*connect.Response[api.ReconcileResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordShares request received",
		"group_id", req.Msg.GroupID,
		"payer", req.Msg.Payer,
		"shares", len(req.Msg.Shares),
		"participants", len(req.Msg.Participants),
	)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(invalidArgument("group_id is required"))
	}
	edges, err := expenseEdges(req.Msg.Payer, req.Msg.Shares, req.Msg.Total, req.Msg.Participants)
	if err != nil {
		return nil, toConnectError(err)
	}

	return s.reconcileGroup(ctx, userID, req.Msg.GroupID, edges)
}

// expenseEdges builds the borrowings of an expense from explicit shares or
// from an equal split of total.
func expenseEdges(payer string, shares []*api.Share, total decimal.Decimal, participants []string) ([]calculator.DebtEdge, error) {
	split := toShares(shares)
	if len(split) == 0 {
		if len(participants) == 0 {
			return nil, invalidArgument("shares or participants are required")
		}
		var err error
		if split, err = calculator.SplitEqually(total, participants); err != nil {
			return nil, invalidArgument("%v", err)
		}
	}

	edges, err := calculator.ShareEdges(payer, split)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	return edges, nil
}

// ReverseBorrowings records the reversal of a deleted expense without
// re-netting the group.
func (s *SettlementService) ReverseBorrowings(ctx context.Context, req *connect.Request[api.ReverseBorrowingsRequest]) (*connect.Response[api.ReverseBorrowingsResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ReverseBorrowings request received",
		"group_id", req.Msg.GroupID,
		"payer", req.Msg.Payer,
		"shares", len(req.Msg.Shares),
	)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(invalidArgument("group_id is required"))
	}
	if err := s.authz.AuthorizeGroup(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, toConnectError(err)
	}
	borrowings, err := calculator.ShareEdges(req.Msg.Payer, toShares(req.Msg.Shares))
	if err != nil {
		return nil, toConnectError(invalidArgument("%v", err))
	}

	settlements, err := s.reconciler.InsertReverse(ctx, req.Msg.GroupID, borrowings)
	if err != nil {
		slog.Error("ReverseBorrowings failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ReverseBorrowingsResponse{
		Settlements: toAPISettlements(settlements, s.resolveNames(ctx, settlements)),
	}), nil
}

// MarkSettled removes a paid settlement. Only its payer or receiver may do so.
func (s *SettlementService) MarkSettled(ctx context.Context, req *connect.Request[api.MarkSettledRequest]) (*connect.Response[api.MarkSettledResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("MarkSettled request received", "settlement_id", req.Msg.SettlementID)

	if req.Msg.SettlementID == "" {
		return nil, toConnectError(invalidArgument("settlement_id is required"))
	}

	settled, err := s.reconciler.MarkSettled(ctx, req.Msg.SettlementID, func(st *models.Settlement) error {
		if !st.Involves(userID) {
			return ErrPermissionDenied
		}
		return nil
	})
	if err != nil {
		slog.Warn("MarkSettled failed", "settlement_id", req.Msg.SettlementID, "error", err)
		return nil, toConnectError(err)
	}

	names := s.resolveNames(ctx, []*models.Settlement{settled})
	return connect.NewResponse(&api.MarkSettledResponse{
		Settlement: toAPISettlement(settled, names),
	}), nil
}

// SettleAll removes every settlement between the caller and another user.
func (s *SettlementService) SettleAll(ctx context.Context, req *connect.Request[api.SettleAllRequest]) (*connect.Response[api.SettleAllResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SettleAll request received", "user_a", req.Msg.UserA, "user_b", req.Msg.UserB)

	scope := models.PairScope(req.Msg.UserA, req.Msg.UserB)
	if err := scope.Validate(); err != nil {
		return nil, toConnectError(invalidArgument("%v", err))
	}
	if err := requirePairMember(userID, scope.UserA, scope.UserB); err != nil {
		return nil, toConnectError(err)
	}

	deleted, err := s.reconciler.SettleAll(ctx, scope.UserA, scope.UserB)
	if err != nil {
		slog.Error("SettleAll failed", "scope", scope.Key(), "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.SettleAllResponse{Deleted: deleted}), nil
}

// ListGroupSettlements returns a group's settlements and the balances they imply.
func (s *SettlementService) ListGroupSettlements(ctx context.Context, req *connect.Request[api.ListGroupSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroupSettlements request received", "group_id", req.Msg.GroupID)

	if req.Msg.GroupID == "" {
		return nil, toConnectError(invalidArgument("group_id is required"))
	}
	if err := s.authz.AuthorizeGroup(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, toConnectError(err)
	}

	settlements, err := s.store.ListSettlements(ctx, models.GroupScope(req.Msg.GroupID))
	if err != nil {
		slog.Error("ListGroupSettlements failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return s.listResponse(ctx, settlements), nil
}

// ListUserSettlements returns the caller's settlements, optionally for one group.
func (s *SettlementService) ListUserSettlements(ctx context.Context, req *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	ctx, userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListUserSettlements request received",
		"user_id", req.Msg.UserID,
		"group_id", req.Msg.GroupID,
	)

	target := req.Msg.UserID
	if target == "" {
		target = userID
	}
	if target != userID {
		return nil, toConnectError(ErrPermissionDenied)
	}

	settlements, err := s.store.ListSettlementsByUser(ctx, target, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListUserSettlements failed", "user_id", target, "error", err)
		return nil, toConnectError(err)
	}

	return s.listResponse(ctx, settlements), nil
}

func (s *SettlementService) listResponse(ctx context.Context, settlements []*models.Settlement) *connect.Response[api.ListSettlementsResponse] {
	names := s.resolveNames(ctx, settlements)
	return connect.NewResponse(&api.ListSettlementsResponse{
		Settlements: toAPISettlements(settlements, names),
		Balances:    toAPIBalances(calculator.Balances(settlementEdges(settlements)), names),
	})
}
