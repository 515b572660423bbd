package debtsummary

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed summary store for tests and single-process
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]Summary)}
}

func (s *MemoryStore) Get(_ context.Context, customerID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[customerID]
	if !ok {
		return Summary{}, ErrNotFound
	}
	return sum, nil
}

func (s *MemoryStore) GetAll(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.CustomerID] = sum
	return nil
}

func (s *MemoryStore) SaveAll(_ context.Context, summaries []Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sum := range summaries {
		s.summaries[sum.CustomerID] = sum
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, customerID)
	return nil
}
