package memory

import (
	"context"
	"sort"
	"sync"

	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu       sync.RWMutex
	reports  map[string]*domain.BatchReport    // keyed by run_id
	outcomes map[string]*storage.OutcomeRecord // keyed by outcome_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		reports:  make(map[string]*domain.BatchReport),
		outcomes: make(map[string]*storage.OutcomeRecord),
	}
}

// InsertReport adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) InsertReport(_ context.Context, r *domain.BatchReport) error {
	if err := storage.ValidateReport(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	copy.Outcomes = nil
	s.reports[r.RunID] = &copy
	return nil
}

// InsertOutcomes adds outcome rows atomically. Fails entire batch on any duplicate.
func (s *RunStore) InsertOutcomes(_ context.Context, records []*storage.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, o := range records {
		if err := storage.ValidateOutcome(o); err != nil {
			return err
		}
		if _, exists := s.outcomes[o.OutcomeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[o.OutcomeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[o.OutcomeID] = struct{}{}
	}

	// Second pass: insert all
	for _, o := range records {
		copy := *o
		s.outcomes[o.OutcomeID] = &copy
	}

	return nil
}

// GetReport retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetReport(_ context.Context, runID string) (*domain.BatchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.reports[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetOutcomes retrieves the outcomes of a run, ordered by index ASC.
func (s *RunStore) GetOutcomes(_ context.Context, runID string) ([]*storage.OutcomeRecord, error) {
	return s.filter(func(o *storage.OutcomeRecord) bool { return o.RunID == runID }), nil
}

// GetOutcomesBySignature retrieves outcomes that carry signature.
func (s *RunStore) GetOutcomesBySignature(_ context.Context, signature string) ([]*storage.OutcomeRecord, error) {
	if signature == "" {
		return nil, storage.ErrInvalidInput
	}
	return s.filter(func(o *storage.OutcomeRecord) bool { return o.Signature == signature }), nil
}

func (s *RunStore) filter(match func(*storage.OutcomeRecord) bool) []*storage.OutcomeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.OutcomeRecord
	for _, o := range s.outcomes {
		if match(o) {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RunID != result[j].RunID {
			return result[i].RunID < result[j].RunID
		}
		return result[i].Index < result[j].Index
	})

	return result
}

var _ storage.RunStore = (*RunStore)(nil)
