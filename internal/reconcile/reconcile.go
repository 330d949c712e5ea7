// Package reconcile keeps the persisted settlement plan of a scope consistent
// with its debts. A reconcile run locks the scope, folds the persisted
// settlements and any new debt edges through the netting engine, and swaps
// the scope's rows for the result in one storage transaction.
//
// The out-of-band changes (mark settled, reverse insertion, settle all) are
// also here so they take the same scope locks as a run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/metrics"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

var (
	// ErrConflict is returned when another operation holds the scope lock.
	ErrConflict = errors.New("scope is being reconciled")

	// ErrStorage wraps any failure of the settlement store.
	ErrStorage = errors.New("settlement storage failure")

	// ErrInvalidScope is returned for a scope with neither a group nor a pair.
	ErrInvalidScope = errors.New("invalid scope")
)

// maxPairRounds bounds how often a pair run re-reads its rows after locking
// groups it had not seen on the previous read.
const maxPairRounds = 3

// Discard reasons reported to metrics.
const (
	discardInvalid    = "invalid"
	discardOutOfScope = "out_of_scope"
)

// Recorder receives reconcile metrics.
type Recorder interface {
	RecordReconcile(kind, result string, duration time.Duration, written int)
	RecordEdgesDiscarded(kind, reason string, n int)
	RecordOutOfBand(op string, err error)
}

// Reconciler runs reconciles against a settlement store.
type Reconciler struct {
	store   storage.SettlementStore
	locker  Locker
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLocker sets the scope locker. Defaults to a LocalLocker.
func WithLocker(l Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Recorder) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler over the given store.
func New(store storage.SettlementStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		locker:  NewLocalLocker(),
		metrics: metrics.NewNoOpCollector(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type actorKey struct{}

// WithActor records the party responsible for changes made under ctx.
// It becomes CreatedBy on written settlements.
func WithActor(ctx context.Context, partyID string) context.Context {
	return context.WithValue(ctx, actorKey{}, partyID)
}

func actorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}

// Reconcile nets the scope's persisted settlements together with newEdges
// and replaces the scope's settlements with the result, which it returns.
//
// Malformed edges are dropped and logged. For a pair scope, edges not between
// the two users are dropped too. Returns ErrConflict if the scope is locked
// and an error wrapping ErrStorage if the store fails; in both cases the
// persisted settlements are unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, scope models.Scope, newEdges []calculator.DebtEdge) ([]*models.Settlement, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	start := time.Now()
	kind := string(scope.Kind())

	settlements, err := r.reconcile(ctx, scope, newEdges)
	r.metrics.RecordReconcile(kind, resultLabel(err), time.Since(start), len(settlements))
	if err != nil {
		return nil, err
	}

	r.logger.Info("Reconcile completed",
		"scope", scope.Key(),
		"new_edges", len(newEdges),
		"settlements", len(settlements),
		"duration", time.Since(start),
	)
	return settlements, nil
}

func (r *Reconciler) reconcile(ctx context.Context, scope models.Scope, newEdges []calculator.DebtEdge) ([]*models.Settlement, error) {
	locks := newLockSet(r.locker)
	defer locks.release()

	existing, err := r.lockScope(ctx, locks, scope)
	if err != nil {
		return nil, err
	}

	edges := make([]calculator.DebtEdge, 0, len(existing)+len(newEdges))
	for _, s := range existing {
		edges = append(edges, calculator.DebtEdge{Debtor: s.Payer, Creditor: s.Receiver, Amount: s.Amount})
	}
	edges = append(edges, r.admit(scope, newEdges)...)

	transfers := calculator.Net(edges)

	groupID := scope.GroupID
	if scope.Kind() == models.ScopePair {
		groupID = soleGroup(existing)
	}

	createdAt := r.now().Unix()
	createdBy := actorFrom(ctx)
	settlements := make([]*models.Settlement, len(transfers))
	for i, t := range transfers {
		settlements[i] = &models.Settlement{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			Payer:     t.Payer,
			Receiver:  t.Receiver,
			Amount:    t.Amount,
			CreatedAt: createdAt,
			CreatedBy: createdBy,
		}
	}

	if err := r.store.ReplaceSettlements(ctx, scope, settlements); err != nil {
		return nil, storageErr("replace settlements", err)
	}

	return settlements, nil
}

// soleGroup returns the group shared by every row, or "" when the rows are
// empty, span several groups, or include a row without a group. A pair run
// keeps that group so its result still shows up in the group's views.
func soleGroup(rows []*models.Settlement) string {
	if len(rows) == 0 {
		return ""
	}
	group := rows[0].GroupID
	for _, s := range rows[1:] {
		if s.GroupID != group {
			return ""
		}
	}
	return group
}

// admit filters new edges, logging and counting the ones it drops.
func (r *Reconciler) admit(scope models.Scope, newEdges []calculator.DebtEdge) []calculator.DebtEdge {
	kind := string(scope.Kind())
	admitted := make([]calculator.DebtEdge, 0, len(newEdges))
	invalid, outside := 0, 0

	for _, e := range newEdges {
		if err := calculator.ValidateEdge(e); err != nil {
			invalid++
			r.logger.Warn("Discarding debt edge",
				"scope", scope.Key(),
				"debtor", e.Debtor,
				"creditor", e.Creditor,
				"amount", e.Amount.String(),
				"error", err,
			)
			continue
		}
		if !scope.Contains(e.Debtor, e.Creditor) {
			outside++
			r.logger.Warn("Discarding debt edge outside pair",
				"scope", scope.Key(),
				"debtor", e.Debtor,
				"creditor", e.Creditor,
			)
			continue
		}
		admitted = append(admitted, e)
	}

	r.metrics.RecordEdgesDiscarded(kind, discardInvalid, invalid)
	r.metrics.RecordEdgesDiscarded(kind, discardOutOfScope, outside)
	return admitted
}

// lockScope acquires the locks for scope and returns its persisted rows.
//
// A group scope needs only its own key. A pair scope spans groups, so it also
// holds the key of every group its rows belong to. Those are only known after
// reading, so the rows are re-read until every group seen is locked.
func (r *Reconciler) lockScope(ctx context.Context, locks *lockSet, scope models.Scope) ([]*models.Settlement, error) {
	if err := locks.acquire(ctx, scope.Key()); err != nil {
		return nil, err
	}

	for range maxPairRounds {
		rows, err := r.store.ListSettlements(ctx, scope)
		if err != nil {
			return nil, storageErr("list settlements", err)
		}
		if scope.Kind() == models.ScopeGroup {
			return rows, nil
		}

		missing := unlockedGroups(locks, rows)
		if len(missing) == 0 {
			return rows, nil
		}
		if err := locks.acquire(ctx, missing...); err != nil {
			return nil, err
		}
	}

	r.logger.Warn("Pair scope kept moving across groups", "scope", scope.Key())
	return nil, ErrConflict
}

func unlockedGroups(locks *lockSet, rows []*models.Settlement) []string {
	var missing []string
	for _, s := range rows {
		if s.GroupID == "" {
			continue
		}
		if key := models.GroupKey(s.GroupID); !locks.holds(key) {
			missing = append(missing, key)
		}
	}
	return missing
}
