package attempt

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/prospector/internal/model"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string][]model.ProcessingAttempt
	records  map[string]model.ProspectRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string][]model.ProcessingAttempt),
		records:  make(map[string]model.ProspectRecord),
	}
}

func (s *MemoryStore) RecordAttempt(_ context.Context, a model.ProcessingAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.TargetKey] = append(s.attempts[a.TargetKey], a)
	return nil
}

func (s *MemoryStore) History(_ context.Context, targetKey string) ([]model.ProcessingAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.attempts[targetKey]
	out := make([]model.ProcessingAttempt, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptedAt.Before(out[j].AttemptedAt)
	})
	return out, nil
}

func (s *MemoryStore) Status(ctx context.Context, targetKey string, knownPassIDs []int) (*model.AttemptStatus, error) {
	history, err := s.History(ctx, targetKey)
	if err != nil {
		return nil, err
	}
	return DeriveStatus(history, knownPassIDs), nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, rec *model.ProspectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Target.Key()] = *rec
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, targetKey string) (*model.ProspectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[targetKey]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, filter RecordFilter) ([]model.ProspectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ProspectRecord
	for _, rec := range s.records {
		if filter.Stage != "" && rec.Stage != filter.Stage {
			continue
		}
		if rec.QualificationScore < filter.MinScore {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Target.Key() < out[j].Target.Key()
	})
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }
