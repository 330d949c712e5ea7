package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

// insertBatchSize bounds the rows per INSERT statement, keeping the bind
// parameter count well under SQLite's limit.
const insertBatchSize = 500

const settlementColumns = `id, group_id, payer, receiver, amount, created_at, created_by, note, position`

const insertSettlement = `
	INSERT INTO settlements (id, group_id, payer, receiver, amount, created_at, created_by, note, position)
	VALUES (:id, :group_id, :payer, :receiver, :amount, :created_at, :created_by, :note, :position)`

// settlementRow is the database shape of a settlement. Empty group and note
// are stored as NULL.
type settlementRow struct {
	ID        string          `db:"id"`
	GroupID   sql.NullString  `db:"group_id"`
	Payer     string          `db:"payer"`
	Receiver  string          `db:"receiver"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt int64           `db:"created_at"`
	CreatedBy string          `db:"created_by"`
	Note      sql.NullString  `db:"note"`
	Position  int             `db:"position"`
}

func toRow(s *models.Settlement, pos int) settlementRow {
	return settlementRow{
		ID:        s.ID,
		GroupID:   sql.NullString{String: s.GroupID, Valid: s.GroupID != ""},
		Payer:     s.Payer,
		Receiver:  s.Receiver,
		Amount:    s.Amount,
		CreatedAt: s.CreatedAt,
		CreatedBy: s.CreatedBy,
		Note:      sql.NullString{String: s.Note, Valid: s.Note != ""},
		Position:  pos,
	}
}

func (r settlementRow) model() *models.Settlement {
	return &models.Settlement{
		ID:        r.ID,
		GroupID:   r.GroupID.String,
		Payer:     r.Payer,
		Receiver:  r.Receiver,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
		Note:      r.Note.String,
	}
}

func toModels(rows []settlementRow) []*models.Settlement {
	settlements := make([]*models.Settlement, len(rows))
	for i, r := range rows {
		settlements[i] = r.model()
	}
	return settlements
}

// scopeFilter returns the WHERE clause selecting every row of the scope.
func scopeFilter(scope models.Scope) (string, []any) {
	if scope.Kind() == models.ScopeGroup {
		return "group_id = ?", []any{scope.GroupID}
	}
	return "(payer = ? AND receiver = ?) OR (payer = ? AND receiver = ?)",
		[]any{scope.UserA, scope.UserB, scope.UserB, scope.UserA}
}

// ListSettlements retrieves all settlements in a scope in creation order.
func (s *Store) ListSettlements(ctx context.Context, scope models.Scope) ([]*models.Settlement, error) {
	where, args := scopeFilter(scope)
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE ` + where +
		` ORDER BY created_at, position, id`

	var rows []settlementRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}

	return toModels(rows), nil
}

// ReplaceSettlements swaps the scope's settlements for the given ones in a
// single transaction.
func (s *Store) ReplaceSettlements(ctx context.Context, scope models.Scope, settlements []*models.Settlement) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	where, args := scopeFilter(scope)
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM settlements WHERE `+where), args...); err != nil {
		return fmt.Errorf("failed to delete settlements: %w", err)
	}

	if err := insertRows(ctx, tx, settlements); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InsertSettlements adds settlements in a single transaction.
func (s *Store) InsertSettlements(ctx context.Context, settlements []*models.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRows(ctx, tx, settlements); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insertRows batch-inserts settlements, recording their slice index so reads
// return them in the order they were produced.
func insertRows(ctx context.Context, tx *sqlx.Tx, settlements []*models.Settlement) error {
	for start := 0; start < len(settlements); start += insertBatchSize {
		end := min(start+insertBatchSize, len(settlements))

		batch := make([]settlementRow, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, toRow(settlements[i], i))
		}

		if _, err := tx.NamedExecContext(ctx, insertSettlement, batch); err != nil {
			return fmt.Errorf("failed to insert settlements: %w", err)
		}
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	var row settlementRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`),
		settlementID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	return row.model(), nil
}

// DeleteSettlement removes a settlement by ID.
func (s *Store) DeleteSettlement(ctx context.Context, settlementID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM settlements WHERE id = ?`), settlementID)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}

	return nil
}

// DeletePairSettlements removes every settlement between two parties.
func (s *Store) DeletePairSettlements(ctx context.Context, partyA, partyB string) (int64, error) {
	where, args := scopeFilter(models.PairScope(partyA, partyB))
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM settlements WHERE `+where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pair settlements: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted rows: %w", err)
	}

	return n, nil
}

// ListSettlementsByUser retrieves settlements the party pays or receives,
// newest first, optionally restricted to one group.
func (s *Store) ListSettlementsByUser(ctx context.Context, partyID, groupID string) ([]*models.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE (payer = ? OR receiver = ?)`
	args := []any{partyID, partyID}
	if groupID != "" {
		query += ` AND group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY created_at DESC, position, id`

	var rows []settlementRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list settlements by user: %w", err)
	}

	return toModels(rows), nil
}

// ListSettlementGroups returns the distinct group IDs that have settlements.
func (s *Store) ListSettlementGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := s.db.SelectContext(ctx, &groups,
		`SELECT DISTINCT group_id FROM settlements WHERE group_id IS NOT NULL AND group_id <> '' ORDER BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement groups: %w", err)
	}

	return groups, nil
}
