package middleware

import (
	"context"
	"slices"
	"strings"

	"connectrpc.com/connect"

	"github.com/soham-0-0-7/split-slice/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserIDKey is the context key for storing the authenticated user ID.
const UserIDKey contextKey = "user_id"

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth returns an interceptor that validates JWT tokens and requires
// authentication. It extracts the token from the Authorization header,
// validates it, and adds the user ID to the request context.
//
// Procedures listed in public skip the requirement but still get the user ID
// when a valid token is sent.
func RequireAuth(jwtManager *auth.JWTManager, public ...string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			optional := slices.Contains(public, req.Spec().Procedure)

			// Extract Authorization header
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				if optional {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			tokenString, ok := bearerToken(authHeader)
			if !ok {
				if optional {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			// Validate token
			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				if optional {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithUserID(ctx, claims.UserID), req)
		}
	}
}
