package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

type visitKey struct {
	childID string
	visitID string
	mt      model.MeasurementType
}

// MemoryStore keeps history in process memory, newest first per child.
type MemoryStore struct {
	mu      sync.RWMutex
	byChild map[string][]Record
	visits  map[visitKey]struct{}
	count   int
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(_ ...Option) *MemoryStore {
	return &MemoryStore{
		byChild: make(map[string][]Record),
		visits:  make(map[visitKey]struct{}),
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, r Record) error {
	n, err := s.SaveAll(ctx, []Record{r})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: visit %s/%s %s", ErrDuplicate, r.ChildID, r.VisitID, r.MeasurementType)
	}
	return nil
}

// SaveAll implements Store. Records already stored for the same child visit
// are skipped.
func (s *MemoryStore) SaveAll(_ context.Context, rs []Record) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordHistoryWriteLatency(float64(time.Since(start).Milliseconds())) }()

	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	added := 0
	touched := make(map[string]struct{})
	for _, r := range rs {
		if r.VisitID != "" {
			k := visitKey{childID: r.ChildID, visitID: r.VisitID, mt: r.MeasurementType}
			if _, dup := s.visits[k]; dup {
				continue
			}
			s.visits[k] = struct{}{}
		}
		flags := make([]model.RedFlag, len(r.RedFlags))
		copy(flags, r.RedFlags)
		r.RedFlags = flags
		s.byChild[r.ChildID] = append(s.byChild[r.ChildID], r)
		touched[r.ChildID] = struct{}{}
		added++
	}
	for id := range touched {
		recs := s.byChild[id]
		sort.SliceStable(recs, func(i, j int) bool { return newerFirst(recs[i], recs[j]) })
	}
	s.count += added
	return added, nil
}

// ListByChild implements Store.
func (s *MemoryStore) ListByChild(_ context.Context, childID string, limit int) ([]Record, error) {
	start := time.Now()
	defer func() { metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	recs := s.byChild[childID]
	if len(recs) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, childID)
	}
	if limit > len(recs) {
		limit = len(recs)
	}
	out := make([]Record, limit)
	copy(out, recs[:limit])
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
