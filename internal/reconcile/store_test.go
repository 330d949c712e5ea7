package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

// memStore is an in-memory storage.SettlementStore with failure injection.
type memStore struct {
	mu   sync.Mutex
	rows []*models.Settlement

	failList    error
	failReplace error
	failInsert  error

	// onList runs at the start of every ListSettlements call, outside mu.
	onList func()
}

var _ storage.SettlementStore = (*memStore)(nil)

func newMemStore(rows ...*models.Settlement) *memStore {
	return &memStore{rows: rows}
}

func inScope(scope models.Scope, s *models.Settlement) bool {
	if scope.Kind() == models.ScopeGroup {
		return s.GroupID == scope.GroupID
	}
	return scope.Contains(s.Payer, s.Receiver)
}

func clone(s *models.Settlement) *models.Settlement {
	c := *s
	return &c
}

func (m *memStore) ListSettlements(_ context.Context, scope models.Scope) ([]*models.Settlement, error) {
	if m.onList != nil {
		m.onList()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}

	var out []*models.Settlement
	for _, s := range m.rows {
		if inScope(scope, s) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *memStore) ReplaceSettlements(_ context.Context, scope models.Scope, settlements []*models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReplace != nil {
		return m.failReplace
	}

	m.rows = slices.DeleteFunc(m.rows, func(s *models.Settlement) bool { return inScope(scope, s) })
	for _, s := range settlements {
		m.rows = append(m.rows, clone(s))
	}
	return nil
}

func (m *memStore) InsertSettlements(_ context.Context, settlements []*models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}

	for _, s := range settlements {
		m.rows = append(m.rows, clone(s))
	}
	return nil
}

func (m *memStore) GetSettlement(_ context.Context, settlementID string) (*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.rows {
		if s.ID == settlementID {
			return clone(s), nil
		}
	}
	return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
}

func (m *memStore) DeleteSettlement(_ context.Context, settlementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.rows)
	m.rows = slices.DeleteFunc(m.rows, func(s *models.Settlement) bool { return s.ID == settlementID })
	if len(m.rows) == n {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return nil
}

func (m *memStore) DeletePairSettlements(_ context.Context, partyA, partyB string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope := models.PairScope(partyA, partyB)
	n := len(m.rows)
	m.rows = slices.DeleteFunc(m.rows, func(s *models.Settlement) bool { return inScope(scope, s) })
	return int64(n - len(m.rows)), nil
}

func (m *memStore) ListSettlementsByUser(_ context.Context, partyID, groupID string) ([]*models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Settlement
	for _, s := range m.rows {
		if s.Involves(partyID) && (groupID == "" || s.GroupID == groupID) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *memStore) ListSettlementGroups(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var groups []string
	for _, s := range m.rows {
		if s.GroupID != "" {
			groups = append(groups, s.GroupID)
		}
	}
	slices.Sort(groups)
	return slices.Compact(groups), nil
}

func (m *memStore) Close() error { return nil }

// recorder captures metrics calls.
type recorder struct {
	mu        sync.Mutex
	results   []string
	written   int
	discarded map[string]int
	outOfBand map[string]int
}

func newRecorder() *recorder {
	return &recorder{discarded: make(map[string]int), outOfBand: make(map[string]int)}
}

func (r *recorder) RecordReconcile(kind, result string, _ time.Duration, written int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, kind+"/"+result)
	r.written += written
}

func (r *recorder) RecordEdgesDiscarded(kind, reason string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded[kind+"/"+reason] += n
}

func (r *recorder) RecordOutOfBand(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.outOfBand[op]++
	}
}
