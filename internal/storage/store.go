// Package storage provides abstractions for persistent settlement storage.
package storage

import (
	"context"
	"errors"

	"github.com/soham-0-0-7/split-slice/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SettlementStore defines the storage operations the reconciler and the
// settlement service need.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type SettlementStore interface {
	// ListSettlements returns every settlement in the scope, oldest first.
	ListSettlements(ctx context.Context, scope models.Scope) ([]*models.Settlement, error)

	// ReplaceSettlements deletes every settlement in the scope and inserts the
	// given ones, in a single transaction. Either both happen or neither does.
	ReplaceSettlements(ctx context.Context, scope models.Scope, settlements []*models.Settlement) error

	// InsertSettlements adds settlements without touching existing rows.
	// All rows are written in one transaction.
	InsertSettlements(ctx context.Context, settlements []*models.Settlement) error

	// GetSettlement retrieves a settlement by ID.
	// Returns an error wrapping ErrNotFound if it does not exist.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// DeleteSettlement removes a single settlement by ID.
	// Returns an error wrapping ErrNotFound if it does not exist.
	DeleteSettlement(ctx context.Context, settlementID string) error

	// DeletePairSettlements removes every settlement between the two parties,
	// in either direction and any group, and returns how many were removed.
	DeletePairSettlements(ctx context.Context, partyA, partyB string) (int64, error)

	// ListSettlementsByUser returns settlements where the party pays or
	// receives, newest first. An empty groupID matches every group.
	ListSettlementsByUser(ctx context.Context, partyID, groupID string) ([]*models.Settlement, error)

	// ListSettlementGroups returns the IDs of groups with at least one settlement.
	ListSettlementGroups(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// PartyStore resolves opaque party IDs to display names.
type PartyStore interface {
	// UpsertParty creates or renames a party.
	UpsertParty(ctx context.Context, party *models.Party) error

	// GetPartyNames returns a map of party ID to display name.
	// Parties that don't exist are omitted from the result.
	GetPartyNames(ctx context.Context, ids []string) (map[string]string, error)
}
