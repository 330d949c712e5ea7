package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/soham-0-0-7/split-slice/internal/models"
)

// UpsertParty creates a party or updates its display name.
func (s *Store) UpsertParty(ctx context.Context, party *models.Party) error {
	query := `
		INSERT INTO parties (id, display_name)
		VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), party.ID, party.DisplayName); err != nil {
		return fmt.Errorf("failed to upsert party: %w", err)
	}

	return nil
}

// GetPartyNames returns a map of party ID to display name for the given IDs.
func (s *Store) GetPartyNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`SELECT id, display_name FROM parties WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build party query: %w", err)
	}

	var rows []struct {
		ID          string `db:"id"`
		DisplayName string `db:"display_name"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get party names: %w", err)
	}

	for _, r := range rows {
		names[r.ID] = r.DisplayName
	}

	return names, nil
}
