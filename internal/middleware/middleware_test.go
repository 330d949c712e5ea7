package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/soham-0-0-7/split-slice/internal/auth"
	"github.com/soham-0-0-7/split-slice/pkg/api"
	"github.com/soham-0-0-7/split-slice/pkg/api/apiconnect"
)

// echoService reports the caller it sees in the context.
type echoService struct {
	apiconnect.UnimplementedSettlementServiceHandler
}

func (echoService) Preview(ctx context.Context, _ *connect.Request[api.PreviewRequest]) (*connect.Response[api.PreviewResponse], error) {
	return connect.NewResponse(&api.PreviewResponse{
		Balances: []*api.Balance{{PartyID: GetUserID(ctx)}},
	}), nil
}

func (echoService) ListUserSettlements(ctx context.Context, _ *connect.Request[api.ListUserSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return connect.NewResponse(&api.ListSettlementsResponse{
		Balances: []*api.Balance{{PartyID: GetUserID(ctx)}},
	}), nil
}

func setupTestServer(t *testing.T, interceptors ...connect.Interceptor) apiconnect.SettlementServiceClient {
	t.Helper()

	path, handler := apiconnect.NewSettlementServiceHandler(echoService{}, connect.WithInterceptors(interceptors...))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return apiconnect.NewSettlementServiceClient(http.DefaultClient, server.URL)
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	client := setupTestServer(t, RequireAuth(jwtManager, apiconnect.SettlementServicePreviewProcedure))
	ctx := context.Background()

	token, err := jwtManager.Generate("alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	t.Run("valid token sets user", func(t *testing.T) {
		resp, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, token))
		if err != nil {
			t.Fatalf("ListUserSettlements failed: %v", err)
		}
		if got := resp.Msg.Balances[0].PartyID; got != "alice" {
			t.Errorf("Expected user alice, got %q", got)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, ""))
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, "garbage"))
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := connect.NewRequest(&api.ListUserSettlementsRequest{})
		req.Header().Set("Authorization", "Token "+token)
		_, err := client.ListUserSettlements(ctx, req)
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("public procedure without token", func(t *testing.T) {
		resp, err := client.Preview(ctx, withToken(&api.PreviewRequest{}, ""))
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if got := resp.Msg.Balances[0].PartyID; got != "" {
			t.Errorf("Expected anonymous caller, got %q", got)
		}
	})

	t.Run("public procedure with token", func(t *testing.T) {
		resp, err := client.Preview(ctx, withToken(&api.PreviewRequest{}, token))
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if got := resp.Msg.Balances[0].PartyID; got != "alice" {
			t.Errorf("Expected user alice, got %q", got)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	limiter := NewRateLimiter(0.001, 2)
	client := setupTestServer(t, LoggingInterceptor(), RequireAuth(jwtManager), limiter.Interceptor())
	ctx := context.Background()

	alice, _ := jwtManager.Generate("alice")
	bob, _ := jwtManager.Generate("bob")

	for i := range 2 {
		if _, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, alice)); err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
	}

	_, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, alice))
	if connect.CodeOf(err) != connect.CodeResourceExhausted {
		t.Errorf("Expected ResourceExhausted, got %v", err)
	}

	// Separate bucket per user
	if _, err := client.ListUserSettlements(ctx, withToken(&api.ListUserSettlementsRequest{}, bob)); err != nil {
		t.Errorf("Expected bob to be allowed, got %v", err)
	}
}

func TestPeerHost(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"203.0.113.7:51234", "203.0.113.7"},
		{"203.0.113.7:51235", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := peerHost(tt.addr); got != tt.want {
			t.Errorf("peerHost(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := NewRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.getLimiter("old")
	now = now.Add(time.Hour)
	limiter.getLimiter("fresh")

	if removed := limiter.Cleanup(30 * time.Minute); removed != 1 {
		t.Errorf("Expected 1 limiter removed, got %d", removed)
	}
	if _, ok := limiter.limiters["fresh"]; !ok {
		t.Error("Expected fresh limiter to be kept")
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	client := setupTestServer(t, LoggingInterceptor())

	_, err := client.SettleAll(context.Background(), connect.NewRequest(&api.SettleAllRequest{}))
	if connect.CodeOf(err) != connect.CodeUnimplemented {
		t.Errorf("Expected Unimplemented error to pass through, got %v", err)
	}
}
