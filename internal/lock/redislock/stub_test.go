package redislock

import (
	"context"
	"sync/atomic"

	"github.com/soham-0-0-7/split-slice/internal/models"
	"github.com/soham-0-0-7/split-slice/internal/storage"
)

// stubStore is an empty settlement store that counts replaces.
type stubStore struct {
	storage.SettlementStore
	replaced atomic.Int32
}

func (s *stubStore) ListSettlements(context.Context, models.Scope) ([]*models.Settlement, error) {
	return nil, nil
}

func (s *stubStore) ReplaceSettlements(context.Context, models.Scope, []*models.Settlement) error {
	s.replaced.Add(1)
	return nil
}
