package runstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
	max     int
}

// NewMemoryStore creates a Store holding at most maxRecords records in
// memory (<= 0 means unbounded). The oldest saved record is evicted first.
func NewMemoryStore(maxRecords int) Store {
	return &memoryStore{
		records: make(map[string]Record),
		max:     maxRecords,
	}
}

func (s *memoryStore) Save(_ context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.RunID]; !exists {
		s.order = append(s.order, rec.RunID)
	}
	s.records[rec.RunID] = rec

	for s.max > 0 && len(s.order) > s.max {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, runID string) (Record, error) {
	if runID == "" {
		return Record{}, ErrEmptyID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[runID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return rec, nil
}

func (s *memoryStore) List(_ context.Context, graphName string, limit int) ([]Record, error) {
	s.mu.RLock()
	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(records, newest)
	return filter(records, graphName, limit), nil
}

func (s *memoryStore) Close() error {
	return nil
}
