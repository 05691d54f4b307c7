package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/callwise/arena/results"
)

// MemoryStore is the default in-process store. All records are deep-copied
// on the way in and out so callers can never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]map[string]*results.TestResult
	order     map[string][]string // run ID -> test IDs in insertion order
	summaries map[string]*results.Summary
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      map[string]map[string]*results.TestResult{},
		order:     map[string][]string{},
		summaries: map[string]*results.Summary{},
	}
}

func (s *MemoryStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = map[string]*results.TestResult{}
	return id, nil
}

func (s *MemoryStore) SaveResult(ctx context.Context, runID, testID string, r *results.TestResult) error {
	if r == nil {
		return fmt.Errorf("statestore: nil result")
	}
	cp, err := copyResult(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}
	if _, exists := run[testID]; !exists {
		s.order[runID] = append(s.order[runID], testID)
	}
	run[testID] = cp
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, runID, testID string) (*results.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}
	r, ok := run[testID]
	if !ok {
		return nil, fmt.Errorf("statestore: result %s/%s: %w", runID, testID, ErrNotFound)
	}
	return copyResult(r)
}

func (s *MemoryStore) ListResults(ctx context.Context, runID string) ([]*results.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}
	out := make([]*results.TestResult, 0, len(run))
	for _, testID := range s.order[runID] {
		cp, err := copyResult(run[testID])
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) CompleteRun(ctx context.Context, runID string, sum *results.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("statestore: run %s: %w", runID, ErrNotFound)
	}
	cp := *sum
	s.summaries[runID] = &cp
	return nil
}

func (s *MemoryStore) GetSummary(ctx context.Context, runID string) (*results.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[runID]
	if !ok {
		return nil, fmt.Errorf("statestore: summary %s: %w", runID, ErrNotFound)
	}
	cp := *sum
	return &cp, nil
}

// copyResult deep-copies via JSON; results are small and already shaped for
// serialization.
func copyResult(r *results.TestResult) (*results.TestResult, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("statestore: copy result: %w", err)
	}
	var cp results.TestResult
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("statestore: copy result: %w", err)
	}
	return &cp, nil
}
