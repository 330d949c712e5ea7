package service

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when the caller may not act on a scope or
// settlement.
var ErrPermissionDenied = errors.New("permission denied")

// Authorizer decides whether a caller may read or recompute a group's
// settlements. Membership lives outside this service, so deployments plug in
// their own check.
type Authorizer interface {
	AuthorizeGroup(ctx context.Context, userID, groupID string) error
}

// AllowAuthenticated permits any authenticated caller.
type AllowAuthenticated struct{}

// AuthorizeGroup implements Authorizer.
func (AllowAuthenticated) AuthorizeGroup(_ context.Context, userID, _ string) error {
	if userID == "" {
		return ErrPermissionDenied
	}
	return nil
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, userID, groupID string) error

// AuthorizeGroup implements Authorizer.
func (f AuthorizerFunc) AuthorizeGroup(ctx context.Context, userID, groupID string) error {
	return f(ctx, userID, groupID)
}
