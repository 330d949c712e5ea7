package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

// Out-of-band operation names reported to metrics.
const (
	opMarkSettled = "mark_settled"
	opReverse     = "reverse_borrowings"
	opSettleAll   = "settle_all"
)

// ReverseNote is the note on settlements inserted by InsertReverse.
const ReverseNote = "reversed expense"

// settlementKey is the lock key covering a single settlement row.
func settlementKey(s *models.Settlement) string {
	if s.GroupID != "" {
		return models.GroupKey(s.GroupID)
	}
	return models.PairScope(s.Payer, s.Receiver).Key()
}

// MarkSettled deletes one settlement and returns it. check, if not nil, runs
// under the lock against the current row and aborts the deletion when it
// returns an error.
func (r *Reconciler) MarkSettled(ctx context.Context, settlementID string, check func(*models.Settlement) error) (*models.Settlement, error) {
	s, err := r.markSettled(ctx, settlementID, check)
	r.metrics.RecordOutOfBand(opMarkSettled, err)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Settlement marked settled",
		"settlement_id", s.ID,
		"payer", s.Payer,
		"receiver", s.Receiver,
		"amount", s.Amount.String(),
	)
	return s, nil
}

func (r *Reconciler) markSettled(ctx context.Context, settlementID string, check func(*models.Settlement) error) (*models.Settlement, error) {
	s, err := r.getSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	locks := newLockSet(r.locker)
	defer locks.release()
	if err := locks.acquire(ctx, settlementKey(s)); err != nil {
		return nil, err
	}

	// A run may have replaced the row before the lock was taken.
	if s, err = r.getSettlement(ctx, settlementID); err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(s); err != nil {
			return nil, err
		}
	}

	if err := r.store.DeleteSettlement(ctx, settlementID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, storageErr("delete settlement", err)
	}
	return s, nil
}

func (r *Reconciler) getSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	s, err := r.store.GetSettlement(ctx, settlementID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("get settlement", err)
	}
	return s, nil
}

// InsertReverse records the reversal of a deleted expense: every borrowing
// (borrower owes lender) is inserted as a settlement with the lender paying
// the borrower. No netting happens; the next Reconcile of the scope folds the
// rows in. Self and sub-cent borrowings are skipped.
func (r *Reconciler) InsertReverse(ctx context.Context, groupID string, borrowings []calculator.DebtEdge) ([]*models.Settlement, error) {
	settlements, err := r.insertReverse(ctx, groupID, borrowings)
	r.metrics.RecordOutOfBand(opReverse, err)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Reverse settlements inserted",
		"group_id", groupID,
		"borrowings", len(borrowings),
		"settlements", len(settlements),
	)
	return settlements, nil
}

func (r *Reconciler) insertReverse(ctx context.Context, groupID string, borrowings []calculator.DebtEdge) ([]*models.Settlement, error) {
	createdAt := r.now().Unix()
	createdBy := actorFrom(ctx)

	var settlements []*models.Settlement
	var keys []string
	for _, e := range calculator.ReverseEdges(borrowings) {
		if !calculator.Nettable(e) {
			continue
		}
		s := &models.Settlement{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			Payer:     e.Debtor,
			Receiver:  e.Creditor,
			Amount:    calculator.RoundCents(e.Amount),
			CreatedAt: createdAt,
			CreatedBy: createdBy,
			Note:      ReverseNote,
		}
		settlements = append(settlements, s)
		keys = append(keys, settlementKey(s))
	}
	if len(settlements) == 0 {
		return nil, nil
	}

	locks := newLockSet(r.locker)
	defer locks.release()
	if err := locks.acquire(ctx, keys...); err != nil {
		return nil, err
	}

	if err := r.store.InsertSettlements(ctx, settlements); err != nil {
		return nil, storageErr("insert settlements", err)
	}
	return settlements, nil
}

// SettleAll deletes every settlement between two users, in any group, and
// returns how many rows were removed.
func (r *Reconciler) SettleAll(ctx context.Context, userA, userB string) (int64, error) {
	scope := models.PairScope(userA, userB)
	if err := scope.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	start := time.Now()
	n, err := r.settleAll(ctx, scope)
	r.metrics.RecordOutOfBand(opSettleAll, err)
	if err != nil {
		return 0, err
	}

	r.logger.Info("Pair settled",
		"scope", scope.Key(),
		"deleted", n,
		"duration", time.Since(start),
	)
	return n, nil
}

func (r *Reconciler) settleAll(ctx context.Context, scope models.Scope) (int64, error) {
	locks := newLockSet(r.locker)
	defer locks.release()

	if _, err := r.lockScope(ctx, locks, scope); err != nil {
		return 0, err
	}

	n, err := r.store.DeletePairSettlements(ctx, scope.UserA, scope.UserB)
	if err != nil {
		return 0, storageErr("delete pair settlements", err)
	}
	return n, nil
}
