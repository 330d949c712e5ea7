package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soham-0-0-7/split-slice/internal/calculator"
	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

var fixedNow = time.Unix(1700000000, 0)

func edge(debtor, creditor, amount string) calculator.DebtEdge {
	return calculator.DebtEdge{Debtor: debtor, Creditor: creditor, Amount: decimal.RequireFromString(amount)}
}

func row(id, groupID, payer, receiver, amount string) *models.Settlement {
	return &models.Settlement{
		ID:        id,
		GroupID:   groupID,
		Payer:     payer,
		Receiver:  receiver,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: 1600000000,
	}
}

// tuples renders settlements as "payer>receiver:amount" in order.
func tuples(settlements []*models.Settlement) []string {
	out := make([]string, len(settlements))
	for i, s := range settlements {
		out[i] = s.Payer + ">" + s.Receiver + ":" + s.Amount.StringFixed(2)
	}
	return out
}

func sortedTuples(settlements []*models.Settlement) []string {
	out := tuples(settlements)
	slices.Sort(out)
	return out
}

func newTestReconciler(store *memStore, opts ...Option) (*Reconciler, *LocalLocker, *recorder) {
	locker := NewLocalLocker()
	rec := newRecorder()
	opts = append([]Option{
		WithLocker(locker),
		WithMetrics(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return New(store, opts...), locker, rec
}

func TestReconcile_Group(t *testing.T) {
	store := newMemStore()
	r, _, rec := newTestReconciler(store)
	ctx := WithActor(context.Background(), "A")

	got, err := r.Reconcile(ctx, models.GroupScope("g1"), []calculator.DebtEdge{
		edge("A", "B", "60"),
		edge("A", "C", "40"),
		edge("B", "D", "30"),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	want := []string{"A>C:40.00", "A>B:30.00", "A>D:30.00"}
	if !slices.Equal(tuples(got), want) {
		t.Errorf("Expected %v, got %v", want, tuples(got))
	}

	for _, s := range got {
		if s.ID == "" {
			t.Error("Expected settlement ID to be generated")
		}
		if s.GroupID != "g1" {
			t.Errorf("Expected group g1, got %q", s.GroupID)
		}
		if s.CreatedAt != fixedNow.Unix() {
			t.Errorf("Expected CreatedAt %d, got %d", fixedNow.Unix(), s.CreatedAt)
		}
		if s.CreatedBy != "A" {
			t.Errorf("Expected CreatedBy A, got %q", s.CreatedBy)
		}
	}

	persisted, _ := store.ListSettlements(ctx, models.GroupScope("g1"))
	if !slices.Equal(tuples(persisted), want) {
		t.Errorf("Expected persisted %v, got %v", want, tuples(persisted))
	}

	if !slices.Equal(rec.results, []string{"group/ok"}) || rec.written != 3 {
		t.Errorf("Unexpected metrics: results=%v written=%d", rec.results, rec.written)
	}
}

func TestReconcile_FoldsPersistedSettlements(t *testing.T) {
	store := newMemStore(
		row("old", "g1", "A", "B", "100"),
		row("other", "g2", "B", "C", "7"),
	)
	r, _, _ := newTestReconciler(store)
	ctx := context.Background()

	// B is a pass-through once the new edge is folded in
	got, err := r.Reconcile(ctx, models.GroupScope("g1"), []calculator.DebtEdge{edge("B", "C", "100")})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if want := []string{"A>C:100.00"}; !slices.Equal(tuples(got), want) {
		t.Errorf("Expected %v, got %v", want, tuples(got))
	}

	if _, err := store.GetSettlement(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected old row to be replaced, got %v", err)
	}
	if _, err := store.GetSettlement(ctx, "other"); err != nil {
		t.Errorf("Expected other group untouched, got %v", err)
	}
}

func TestReconcile_FixedPoint(t *testing.T) {
	store := newMemStore(
		row("s1", "g1", "A", "B", "30"),
		row("s2", "g1", "B", "A", "10"),
		row("s3", "g1", "C", "B", "5.005"),
	)
	r, _, _ := newTestReconciler(store)
	ctx := context.Background()
	scope := models.GroupScope("g1")

	first, err := r.Reconcile(ctx, scope, nil)
	if err != nil {
		t.Fatalf("First Reconcile failed: %v", err)
	}
	second, err := r.Reconcile(ctx, scope, nil)
	if err != nil {
		t.Fatalf("Second Reconcile failed: %v", err)
	}
	third, err := r.Reconcile(ctx, scope, nil)
	if err != nil {
		t.Fatalf("Third Reconcile failed: %v", err)
	}

	if !slices.Equal(sortedTuples(second), sortedTuples(first)) {
		t.Errorf("Second run changed the plan: %v -> %v", tuples(first), tuples(second))
	}
	if !slices.Equal(sortedTuples(third), sortedTuples(second)) {
		t.Errorf("Third run changed the plan: %v -> %v", tuples(second), tuples(third))
	}
}

func TestReconcile_DiscardsMalformedEdges(t *testing.T) {
	store := newMemStore()
	r, _, rec := newTestReconciler(store)

	got, err := r.Reconcile(context.Background(), models.GroupScope("g1"), []calculator.DebtEdge{
		edge("A", "B", "10"),
		edge("", "B", "10"),
		edge("A", "", "10"),
		edge("C", "A", "-5"),
		edge("A", "A", "99"),
		edge("A", "B", "0.004"),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if want := []string{"A>B:10.00"}; !slices.Equal(tuples(got), want) {
		t.Errorf("Expected %v, got %v", want, tuples(got))
	}
	if n := rec.discarded["group/invalid"]; n != 3 {
		t.Errorf("Expected 3 invalid edges counted, got %d", n)
	}
}

func TestReconcile_PairScope(t *testing.T) {
	store := newMemStore(
		row("g1-ab", "g1", "A", "B", "30"),
		row("g2-ba", "g2", "B", "A", "10"),
		row("g1-ac", "g1", "A", "C", "5"),
		row("none-ab", "", "A", "B", "1"),
	)
	r, locker, rec := newTestReconciler(store)
	ctx := context.Background()

	got, err := r.Reconcile(ctx, models.PairScope("B", "A"), []calculator.DebtEdge{
		edge("C", "A", "50"),
		edge("B", "A", "0.50"),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if want := []string{"A>B:20.50"}; !slices.Equal(tuples(got), want) {
		t.Errorf("Expected %v, got %v", want, tuples(got))
	}
	if got[0].GroupID != "" {
		t.Errorf("Expected pair settlement without group, got %q", got[0].GroupID)
	}
	if n := rec.discarded["pair/out_of_scope"]; n != 1 {
		t.Errorf("Expected 1 out-of-scope edge counted, got %d", n)
	}

	if _, err := store.GetSettlement(ctx, "g1-ac"); err != nil {
		t.Errorf("Expected unrelated pair untouched, got %v", err)
	}

	// Every lock taken by the run is released
	for _, key := range []string{"pair:A|B", "group:g1", "group:g2"} {
		unlock, err := locker.TryLock(ctx, key)
		if err != nil {
			t.Errorf("Expected %s to be free, got %v", key, err)
			continue
		}
		unlock()
	}
}

func TestReconcile_PairScopeKeepsSoleGroup(t *testing.T) {
	tests := []struct {
		name      string
		rows      []*models.Settlement
		wantGroup string
	}{
		{
			name:      "single group",
			rows:      []*models.Settlement{row("1", "g1", "A", "B", "30"), row("2", "g1", "B", "A", "10")},
			wantGroup: "g1",
		},
		{
			name:      "two groups",
			rows:      []*models.Settlement{row("1", "g1", "A", "B", "30"), row("2", "g2", "B", "A", "10")},
			wantGroup: "",
		},
		{
			name:      "group and no group",
			rows:      []*models.Settlement{row("1", "g1", "A", "B", "30"), row("2", "", "B", "A", "10")},
			wantGroup: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(tt.rows...)
			r, _, _ := newTestReconciler(store)
			ctx := context.Background()

			got, err := r.Reconcile(ctx, models.PairScope("A", "B"), nil)
			if err != nil {
				t.Fatalf("Reconcile failed: %v", err)
			}
			if want := []string{"A>B:20.00"}; !slices.Equal(tuples(got), want) {
				t.Fatalf("Expected %v, got %v", want, tuples(got))
			}
			if got[0].GroupID != tt.wantGroup {
				t.Errorf("Expected group %q, got %q", tt.wantGroup, got[0].GroupID)
			}

			if tt.wantGroup != "" {
				inGroup, err := store.ListSettlements(ctx, models.GroupScope(tt.wantGroup))
				if err != nil {
					t.Fatalf("ListSettlements failed: %v", err)
				}
				if want := []string{"A>B:20.00"}; !slices.Equal(tuples(inGroup), want) {
					t.Errorf("Expected group view %v, got %v", want, tuples(inGroup))
				}
			}
		})
	}
}

func TestReconcile_Conflict(t *testing.T) {
	store := newMemStore(row("s1", "g1", "A", "B", "10"))
	r, locker, rec := newTestReconciler(store)
	ctx := context.Background()

	unlock, err := locker.TryLock(ctx, models.GroupKey("g1"))
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}

	_, err = r.Reconcile(ctx, models.GroupScope("g1"), []calculator.DebtEdge{edge("B", "A", "10")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	if _, err := store.GetSettlement(ctx, "s1"); err != nil {
		t.Errorf("Expected rows untouched after conflict, got %v", err)
	}
	if !slices.Equal(rec.results, []string{"group/conflict"}) {
		t.Errorf("Expected conflict metric, got %v", rec.results)
	}

	unlock()
	if _, err := r.Reconcile(ctx, models.GroupScope("g1"), nil); err != nil {
		t.Errorf("Expected Reconcile to succeed after unlock, got %v", err)
	}
}

func TestReconcile_PairConflictsWithGroup(t *testing.T) {
	store := newMemStore(row("s1", "g1", "A", "B", "10"))
	r, locker, _ := newTestReconciler(store)
	ctx := context.Background()

	unlock, err := locker.TryLock(ctx, models.GroupKey("g1"))
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer unlock()

	if _, err := r.Reconcile(ctx, models.PairScope("A", "B"), nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// The pair key taken before the conflict is released
	pairUnlock, err := locker.TryLock(ctx, models.PairScope("A", "B").Key())
	if err != nil {
		t.Fatalf("Expected pair key to be free, got %v", err)
	}
	pairUnlock()
}

func TestReconcile_StorageFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("replace fails", func(t *testing.T) {
		store := newMemStore(row("s1", "g1", "A", "B", "10"))
		store.failReplace = errors.New("disk full")
		r, _, rec := newTestReconciler(store)

		_, err := r.Reconcile(ctx, models.GroupScope("g1"), []calculator.DebtEdge{edge("A", "B", "5")})
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("Expected ErrStorage, got %v", err)
		}
		if _, err := store.GetSettlement(ctx, "s1"); err != nil {
			t.Errorf("Expected previous rows kept, got %v", err)
		}
		if !slices.Equal(rec.results, []string{"group/error"}) {
			t.Errorf("Expected error metric, got %v", rec.results)
		}
	})

	t.Run("list fails", func(t *testing.T) {
		store := newMemStore()
		store.failList = errors.New("connection reset")
		r, _, _ := newTestReconciler(store)

		if _, err := r.Reconcile(ctx, models.GroupScope("g1"), nil); !errors.Is(err, ErrStorage) {
			t.Fatalf("Expected ErrStorage, got %v", err)
		}
	})
}

func TestReconcile_InvalidScope(t *testing.T) {
	r, _, _ := newTestReconciler(newMemStore())

	for _, scope := range []models.Scope{{}, models.PairScope("A", "A"), {UserA: "A"}} {
		if _, err := r.Reconcile(context.Background(), scope, nil); !errors.Is(err, ErrInvalidScope) {
			t.Errorf("Expected ErrInvalidScope for %+v, got %v", scope, err)
		}
	}
}

func TestReconcile_ConcurrentSameScope(t *testing.T) {
	store := newMemStore(row("s1", "g1", "A", "B", "10"))
	r, _, _ := newTestReconciler(store)
	ctx := context.Background()
	scope := models.GroupScope("g1")

	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	store.onList = func() {
		if first {
			first = false
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Reconcile(ctx, scope, []calculator.DebtEdge{edge("A", "B", "5")})
		done <- err
	}()

	<-entered
	if _, err := r.Reconcile(ctx, scope, []calculator.DebtEdge{edge("A", "B", "1")}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for the second caller, got %v", err)
	}

	// A different scope is not blocked
	if _, err := r.Reconcile(ctx, models.GroupScope("g2"), []calculator.DebtEdge{edge("C", "D", "1")}); err != nil {
		t.Errorf("Expected other scope to proceed, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("First Reconcile failed: %v", err)
	}

	got, _ := store.ListSettlements(ctx, scope)
	if want := []string{"A>B:15.00"}; !slices.Equal(tuples(got), want) {
		t.Errorf("Expected %v, got %v", want, tuples(got))
	}
}
