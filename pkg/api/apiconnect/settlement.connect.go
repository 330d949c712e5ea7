// Package apiconnect holds the Connect handler and client for the settlement
// service.
package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/soham-0-0-7/split-slice/pkg/api"
)

// SettlementServiceName is the fully-qualified name of the SettlementService service.
const SettlementServiceName = "splitslice.v1.SettlementService"

// Procedure paths of the SettlementService RPCs.
const (
	SettlementServicePreviewProcedure              = "/splitslice.v1.SettlementService/Preview"
	SettlementServiceReconcileGroupProcedure       = "/splitslice.v1.SettlementService/ReconcileGroup"
	SettlementServiceReconcilePairProcedure        = "/splitslice.v1.SettlementService/ReconcilePair"
	SettlementServiceRecordSharesProcedure         = "/splitslice.v1.SettlementService/RecordShares"
	SettlementServiceReverseBorrowingsProcedure    = "/splitslice.v1.SettlementService/ReverseBorrowings"
	SettlementServiceMarkSettledProcedure          = "/splitslice.v1.SettlementService/MarkSettled"
	SettlementServiceSettleAllProcedure            = "/splitslice.v1.SettlementService/SettleAll"
	SettlementServiceListGroupSettlementsProcedure = "/splitslice.v1.SettlementService/ListGroupSettlements"
	SettlementServiceListUserSettlementsProcedure  = "/splitslice.v1.SettlementService/ListUserSettlements"
)

// SettlementServiceClient is a client for the splitslice.v1.SettlementService service.
type SettlementServiceClient interface {
	Preview(context.Context, *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error)
	ReconcileGroup(context.Context, *connect.Request[api.ReconcileGroupRequest]) (*connect.Response[api.ReconcileResponse], error)
	ReconcilePair(context.Context, *connect.Request[api.ReconcilePairRequest]) (*connect.Response[api.ReconcileResponse], error)
	RecordShares(context.Context, *connect.Request[api.RecordSharesRequest]) (*connect.Response[api.ReconcileResponse], error)
	ReverseBorrowings(context.Context, *connect.Request[api.ReverseBorrowingsRequest]) (*connect.Response[api.ReverseBorrowingsResponse], error)
	MarkSettled(context.Context, *connect.Request[api.MarkSettledRequest]) (*connect.Response[api.MarkSettledResponse], error)
	SettleAll(context.Context, *connect.Request[api.SettleAllRequest]) (*connect.Response[api.SettleAllResponse], error)
	ListGroupSettlements(context.Context, *connect.Request[api.ListGroupSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	ListUserSettlements(context.Context, *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
}

// NewSettlementServiceClient constructs a client for the
// splitslice.v1.SettlementService service. It always uses api.Codec.
//
// The URL supplied here should be the base URL for the Connect server
// (for example, http://api.acme.com or https://acme.com/grpc).
func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append(opts, connect.WithCodec(api.Codec{}))
	return &settlementServiceClient{
		preview: connect.NewClient[api.PreviewRequest, api.PreviewResponse](
			httpClient, baseURL+SettlementServicePreviewProcedure, opts...),
		reconcileGroup: connect.NewClient[api.ReconcileGroupRequest, api.ReconcileResponse](
			httpClient, baseURL+SettlementServiceReconcileGroupProcedure, opts...),
		reconcilePair: connect.NewClient[api.ReconcilePairRequest, api.ReconcileResponse](
			httpClient, baseURL+SettlementServiceReconcilePairProcedure, opts...),
		recordShares: connect.NewClient[api.RecordSharesRequest, api.ReconcileResponse](
			httpClient, baseURL+SettlementServiceRecordSharesProcedure, opts...),
		reverseBorrowings: connect.NewClient[api.ReverseBorrowingsRequest, api.ReverseBorrowingsResponse](
			httpClient, baseURL+SettlementServiceReverseBorrowingsProcedure, opts...),
		markSettled: connect.NewClient[api.MarkSettledRequest, api.MarkSettledResponse](
			httpClient, baseURL+SettlementServiceMarkSettledProcedure, opts...),
		settleAll: connect.NewClient[api.SettleAllRequest, api.SettleAllResponse](
			httpClient, baseURL+SettlementServiceSettleAllProcedure, opts...),
		listGroupSettlements: connect.NewClient[api.ListGroupSettlementsRequest, api.ListSettlementsResponse](
			httpClient, baseURL+SettlementServiceListGroupSettlementsProcedure, opts...),
		listUserSettlements: connect.NewClient[api.ListUserSettlementsRequest, api.ListSettlementsResponse](
			httpClient, baseURL+SettlementServiceListUserSettlementsProcedure, opts...),
	}
}

// settlementServiceClient implements SettlementServiceClient.
type settlementServiceClient struct {
	preview              *connect.Client[api.PreviewRequest, api.PreviewResponse]
	reconcileGroup       *connect.Client[api.ReconcileGroupRequest, api.ReconcileResponse]
	reconcilePair        *connect.Client[api.ReconcilePairRequest, api.ReconcileResponse]
	recordShares         *connect.Client[api.RecordSharesRequest, api.ReconcileResponse]
	reverseBorrowings    *connect.Client[api.ReverseBorrowingsRequest, api.ReverseBorrowingsResponse]
	markSettled          *connect.Client[api.MarkSettledRequest, api.MarkSettledResponse]
	settleAll            *connect.Client[api.SettleAllRequest, api.SettleAllResponse]
	listGroupSettlements *connect.Client[api.ListGroupSettlementsRequest, api.ListSettlementsResponse]
	listUserSettlements  *connect.Client[api.ListUserSettlementsRequest, api.ListSettlementsResponse]
}

func (c *settlementServiceClient) Preview(ctx context.Context, req *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error) {
	return c.preview.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ReconcileGroup(ctx context.Context, req *connect.Request[api.ReconcileGroupRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return c.reconcileGroup.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ReconcilePair(ctx context.Context, req *connect.Request[api.ReconcilePairRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return c.reconcilePair.CallUnary(ctx, req)
}

func (c *settlementServiceClient) RecordShares(ctx context.Context, req *connect.Request[api.RecordSharesRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return c.recordShares.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ReverseBorrowings(ctx context.Context, req *connect.Request[api.ReverseBorrowingsRequest]) (*connect.Response[api.ReverseBorrowingsResponse], error) {
	return c.reverseBorrowings.CallUnary(ctx, req)
}

func (c *settlementServiceClient) MarkSettled(ctx context.Context, req *connect.Request[api.MarkSettledRequest]) (*connect.Response[api.MarkSettledResponse], error) {
	return c.markSettled.CallUnary(ctx, req)
}

func (c *settlementServiceClient) SettleAll(ctx context.Context, req *connect.Request[api.SettleAllRequest]) (*connect.Response[api.SettleAllResponse], error) {
	return c.settleAll.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ListGroupSettlements(ctx context.Context, req *connect.Request[api.ListGroupSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listGroupSettlements.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ListUserSettlements(ctx context.Context, req *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listUserSettlements.CallUnary(ctx, req)
}

// SettlementServiceHandler is an implementation of the
// splitslice.v1.SettlementService service.
type SettlementServiceHandler interface {
	Preview(context.Context, *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error)
	ReconcileGroup(context.Context, *connect.Request[api.ReconcileGroupRequest]) (*connect.Response[api.ReconcileResponse], error)
	ReconcilePair(context.Context, *connect.Request[api.ReconcilePairRequest]) (*connect.Response[api.ReconcileResponse], error)
	RecordShares(context.Context, *connect.Request[api.RecordSharesRequest]) (*connect.Response[api.ReconcileResponse], error)
	ReverseBorrowings(context.Context, *connect.Request[api.ReverseBorrowingsRequest]) (*connect.Response[api.ReverseBorrowingsResponse], error)
	MarkSettled(context.Context, *connect.Request[api.MarkSettledRequest]) (*connect.Response[api.MarkSettledResponse], error)
	SettleAll(context.Context, *connect.Request[api.SettleAllRequest]) (*connect.Response[api.SettleAllResponse], error)
	ListGroupSettlements(context.Context, *connect.Request[api.ListGroupSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	ListUserSettlements(context.Context, *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
}

// NewSettlementServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself. The handler always uses api.Codec.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connect.WithCodec(api.Codec{}))

	preview := connect.NewUnaryHandler(SettlementServicePreviewProcedure, svc.Preview, opts...)
	reconcileGroup := connect.NewUnaryHandler(SettlementServiceReconcileGroupProcedure, svc.ReconcileGroup, opts...)
	reconcilePair := connect.NewUnaryHandler(SettlementServiceReconcilePairProcedure, svc.ReconcilePair, opts...)
	recordShares := connect.NewUnaryHandler(SettlementServiceRecordSharesProcedure, svc.RecordShares, opts...)
	reverseBorrowings := connect.NewUnaryHandler(SettlementServiceReverseBorrowingsProcedure, svc.ReverseBorrowings, opts...)
	markSettled := connect.NewUnaryHandler(SettlementServiceMarkSettledProcedure, svc.MarkSettled, opts...)
	settleAll := connect.NewUnaryHandler(SettlementServiceSettleAllProcedure, svc.SettleAll, opts...)
	listGroupSettlements := connect.NewUnaryHandler(SettlementServiceListGroupSettlementsProcedure, svc.ListGroupSettlements, opts...)
	listUserSettlements := connect.NewUnaryHandler(SettlementServiceListUserSettlementsProcedure, svc.ListUserSettlements, opts...)

	return "/" + SettlementServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettlementServicePreviewProcedure:
			preview.ServeHTTP(w, r)
		case SettlementServiceReconcileGroupProcedure:
			reconcileGroup.ServeHTTP(w, r)
		case SettlementServiceReconcilePairProcedure:
			reconcilePair.ServeHTTP(w, r)
		case SettlementServiceRecordSharesProcedure:
			recordShares.ServeHTTP(w, r)
		case SettlementServiceReverseBorrowingsProcedure:
			reverseBorrowings.ServeHTTP(w, r)
		case SettlementServiceMarkSettledProcedure:
			markSettled.ServeHTTP(w, r)
		case SettlementServiceSettleAllProcedure:
			settleAll.ServeHTTP(w, r)
		case SettlementServiceListGroupSettlementsProcedure:
			listGroupSettlements.ServeHTTP(w, r)
		case SettlementServiceListUserSettlementsProcedure:
			listUserSettlements.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

var errUnimplemented = errors.New("procedure is not implemented")

// UnimplementedSettlementServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedSettlementServiceHandler struct{}

func (UnimplementedSettlementServiceHandler) Preview(context.Context, *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) ReconcileGroup(context.Context, *connect.Request[api.ReconcileGroupRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) ReconcilePair(context.Context, *connect.Request[api.ReconcilePairRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) RecordShares(context.Context, *connect.Request[api.RecordSharesRequest]) (*connect.Response[api.ReconcileResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) ReverseBorrowings(context.Context, *connect.Request[api.ReverseBorrowingsRequest]) (*connect.Response[api.ReverseBorrowingsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) MarkSettled(context.Context, *connect.Request[api.MarkSettledRequest]) (*connect.Response[api.MarkSettledResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) SettleAll(context.Context, *connect.Request[api.SettleAllRequest]) (*connect.Response[api.SettleAllResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) ListGroupSettlements(context.Context, *connect.Request[api.ListGroupSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedSettlementServiceHandler) ListUserSettlements(context.Context, *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}
