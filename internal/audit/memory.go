package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps records in memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, record.ID)
	}
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, invocationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[invocationID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// List implements Store
func (s *MemoryStore) List(_ context.Context, filter *Filter) ([]*Record, error) {
	s.mu.RLock()
	var out []*Record
	for _, r := range s.records {
		if filter.matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(out) {
				return nil, nil
			}
			out = out[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(out) {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

// Close implements Store
func (s *MemoryStore) Close(context.Context) error {
	return nil
}
