package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/reconcile"
)

// GroupLister lists groups that have pending settlements.
type GroupLister interface {
	ListSettlementGroups(ctx context.Context) ([]string, error)
}

// Reconciler re-nets a scope.
type Reconciler interface {
	Reconcile(ctx context.Context, scope models.Scope, newEdges []calculator.DebtEdge) ([]*models.Settlement, error)
}

// RenetRecorder receives the outcome of each re-netting pass.
type RenetRecorder interface {
	RecordRenet(groups int, err error)
}

// RenetResult counts what a pass did with each group.
type RenetResult struct {
	Renetted int
	Skipped  int
	Failed   int
}

// Renetter re-nets every group with pending settlements, folding in rows
// that were inserted or removed out of band since the last run.
type Renetter struct {
	groups     GroupLister
	reconciler Reconciler
	metrics    RenetRecorder
	logger     *slog.Logger
}

// NewRenetter creates a Renetter. metrics may be nil.
func NewRenetter(groups GroupLister, reconciler Reconciler, metrics RenetRecorder, logger *slog.Logger) *Renetter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renetter{
		groups:     groups,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunOnce re-nets each group in turn. Groups locked by another run are
// skipped; other failures are collected and the pass continues.
func (r *Renetter) RunOnce(ctx context.Context) (RenetResult, error) {
	start := time.Now()
	res, err := r.runOnce(ctx)
	if r.metrics != nil {
		r.metrics.RecordRenet(res.Renetted, err)
	}

	if err != nil {
		r.logger.Error("Re-netting pass failed",
			"renetted", res.Renetted,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"error", err,
		)
		return res, err
	}
	r.logger.Info("Re-netting pass completed",
		"renetted", res.Renetted,
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (r *Renetter) runOnce(ctx context.Context) (RenetResult, error) {
	var res RenetResult

	groups, err := r.groups.ListSettlementGroups(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list groups: %w", err)
	}

	var errs []error
	for _, groupID := range groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		_, err := r.reconciler.Reconcile(ctx, models.GroupScope(groupID), nil)
		switch {
		case err == nil:
			res.Renetted++
		case errors.Is(err, reconcile.ErrConflict):
			res.Skipped++
			r.logger.Info("Group busy, skipping", "group_id", groupID)
		default:
			res.Failed++
			r.logger.Warn("Failed to re-net group", "group_id", groupID, "error", err)
			errs = append(errs, fmt.Errorf("group %s: %w", groupID, err))
		}
	}
	return res, errors.Join(errs...)
}

// Job adapts RunOnce for Scheduler.Add. Errors are already logged.
func (r *Renetter) Job(ctx context.Context) {
	_, _ = r.RunOnce(ctx)
}
