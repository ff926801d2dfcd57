package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

type memoryEntry struct {
	run    Run
	towers []models.TowerResult
	picks  []grouping.Pick
}

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*memoryEntry
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*memoryEntry),
	}
}

// Create stores run as pending. An empty ID is replaced by a generated one.
func (s *MemoryStore) Create(_ context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = utils.GenerateRunID()
	}
	if _, exists := s.runs[run.ID]; exists {
		return Run{}, fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}
	run.Status = StatusPending
	run.CreatedAtUnixMs = nowUnixMs()
	run.StartedAtUnixMs, run.EndedAtUnixMs = 0, 0

	s.runs[run.ID] = &memoryEntry{run: run.clone()}
	s.order = append(s.order, run.ID)
	return run, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e.run.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.limit()
	out := make([]Run, 0, min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		run := s.runs[id].run
		if f.Status != "" && run.Status != f.Status {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, run.clone())
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status, errMsg string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	transition(&e.run, status, errMsg)
	return e.run.clone(), nil
}

func (s *MemoryStore) SetOutcome(_ context.Context, id string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	summary := out.Summary
	e.run.Summary = &summary
	e.run.Uncovered = slices.Clone(out.Uncovered)
	return nil
}

// RecordTower stores result, replacing an earlier result for the same tower.
func (s *MemoryStore) RecordTower(_ context.Context, runID string, result models.TowerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	i := slices.IndexFunc(e.towers, func(r models.TowerResult) bool { return r.Tower.Name == result.Tower.Name })
	if i >= 0 {
		e.towers[i] = result
		return nil
	}
	e.towers = append(e.towers, result)
	return nil
}

func (s *MemoryStore) RecordGroup(_ context.Context, runID string, pick grouping.Pick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	e.picks = append(e.picks, pick)
	return nil
}

// Towers returns the recorded tower results ordered by tower name.
func (s *MemoryStore) Towers(_ context.Context, runID string) ([]models.TowerResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := slices.Clone(e.towers)
	slices.SortFunc(out, func(a, b models.TowerResult) int { return cmp.Compare(a.Tower.Name, b.Tower.Name) })
	return out, nil
}

// Picks returns the recorded picks in iteration order.
func (s *MemoryStore) Picks(_ context.Context, runID string) ([]grouping.Pick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := slices.Clone(e.picks)
	slices.SortFunc(out, func(a, b grouping.Pick) int { return cmp.Compare(a.Iteration, b.Iteration) })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
