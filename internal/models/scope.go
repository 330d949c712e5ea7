package models

import "fmt"

// ScopeKind distinguishes group scopes from pair scopes.
type ScopeKind string

const (
	ScopeGroup ScopeKind = "group"
	ScopePair  ScopeKind = "pair"
)

// Scope is the boundary over which settlements are netted and replaced.
//
// A group scope covers every settlement with the given GroupID. A pair scope
// covers every settlement between UserA and UserB in either direction,
// regardless of group.
type Scope struct {
	GroupID string
	UserA   string
	UserB   string
}

// GroupScope returns the scope for a group.
func GroupScope(groupID string) Scope {
	return Scope{GroupID: groupID}
}

// PairScope returns the scope for a pair of users. The pair is unordered:
// PairScope(a, b) and PairScope(b, a) have the same Key.
func PairScope(userA, userB string) Scope {
	if userB < userA {
		userA, userB = userB, userA
	}
	return Scope{UserA: userA, UserB: userB}
}

// Kind returns whether this is a group or a pair scope.
func (s Scope) Kind() ScopeKind {
	if s.GroupID != "" {
		return ScopeGroup
	}
	return ScopePair
}

// Key returns the lock key for the scope.
func (s Scope) Key() string {
	if s.Kind() == ScopeGroup {
		return GroupKey(s.GroupID)
	}
	return fmt.Sprintf("pair:%s|%s", s.UserA, s.UserB)
}

// Validate checks that the scope names a group or two distinct users.
func (s Scope) Validate() error {
	if s.GroupID != "" {
		return nil
	}
	if s.UserA == "" || s.UserB == "" {
		return fmt.Errorf("scope requires a group_id or two users")
	}
	if s.UserA == s.UserB {
		return fmt.Errorf("pair scope requires two distinct users")
	}
	return nil
}

// Contains reports whether an edge between the two parties belongs to a pair
// scope. Always true for group scopes.
func (s Scope) Contains(partyA, partyB string) bool {
	if s.Kind() == ScopeGroup {
		return true
	}
	return (partyA == s.UserA && partyB == s.UserB) || (partyA == s.UserB && partyB == s.UserA)
}

// GroupKey returns the lock key for a group.
func GroupKey(groupID string) string {
	return "group:" + groupID
}
