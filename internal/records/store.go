// Package records holds the in-memory working set of decision records
// for whichever scope is active, persisting every change before it is
// reflected in memory.
package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"decisio/api/internal/analysis"
	"decisio/api/internal/decision"
	"decisio/api/internal/diff"
	"decisio/api/internal/reconcile"
	"decisio/api/internal/store"
	"decisio/api/internal/util"
)

var (
	// ErrNotFound is returned for an unknown record ID.
	ErrNotFound = errors.New("record not found")

	// ErrScopeChanged marks a write discarded because the active scope
	// switched while the operation was in flight.
	ErrScopeChanged = errors.New("scope changed during operation")

	// ErrVersionRange is returned when a timeline index does not exist.
	ErrVersionRange = errors.New("version index out of range")

	// ErrNoAnalyzer is returned when no analysis backend is configured.
	ErrNoAnalyzer = errors.New("no analyzer configured")
)

// Store is the single working set of records. All mutations persist to
// the active backend first; a failed write leaves memory untouched.
type Store struct {
	mu         sync.Mutex
	ctrl       *reconcile.Controller
	analyzer   analysis.Analyzer
	records    []decision.Record
	scope      store.Scope
	selectedID string

	now   func() time.Time
	newID func() string
}

func New(ctrl *reconcile.Controller, analyzer analysis.Analyzer) *Store {
	return &Store{
		ctrl:     ctrl,
		analyzer: analyzer,
		scope:    store.ScopeLocal,
		now:      time.Now,
		newID:    func() string { return util.NewID("dec") },
	}
}

// ReplaceAll swaps the working set wholesale on a scope change and
// drops the selection.
func (s *Store) ReplaceAll(scope store.Scope, records []decision.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.records = append([]decision.Record(nil), records...)
	s.selectedID = ""
}

// Scope reports which scope the working set currently mirrors.
func (s *Store) Scope() store.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// List returns a copy of the working set, newest first.
func (s *Store) List() []decision.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]decision.Record(nil), s.records...)
}

// Get returns one record by ID.
func (s *Store) Get(id string) (decision.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return decision.Record{}, ErrNotFound
}

// Select marks a record as the one currently open.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			s.selectedID = id
			return nil
		}
	}
	return ErrNotFound
}

// Selected returns the currently open record, if any.
func (s *Store) Selected() (decision.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == s.selectedID {
			return r, true
		}
	}
	return decision.Record{}, false
}

// Analyze runs a fresh analysis, persists the new record, and prepends
// it to the working set. The new record becomes selected.
func (s *Store) Analyze(ctx context.Context, input decision.DecisionInput, userName string) (decision.Record, error) {
	if s.analyzer == nil {
		return decision.Record{}, ErrNoAnalyzer
	}
	tok := s.ctrl.Capture()

	result, err := s.analyzer.Analyze(ctx, input, userName)
	if err != nil {
		return decision.Record{}, fmt.Errorf("analyze decision: %w", err)
	}

	rec := decision.Record{
		ID:        s.newID(),
		Title:     input.Question,
		Input:     input,
		Analysis:  result,
		CreatedAt: s.now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.Valid(tok) {
		return decision.Record{}, ErrScopeChanged
	}
	if err := tok.Backend.UpsertRecord(ctx, tok.OwnerID, rec); err != nil {
		return decision.Record{}, fmt.Errorf("persist record: %w", err)
	}
	s.records = append([]decision.Record{rec}, s.records...)
	s.selectedID = rec.ID
	return rec, nil
}

// Refine applies an instruction to a record's current analysis. The
// previous version moves onto the refinement history. If persisting
// the updated record fails, the in-memory record is left exactly as it
// was.
func (s *Store) Refine(ctx context.Context, id, instruction string) (decision.Record, diff.View, error) {
	current, err := s.Get(id)
	if err != nil {
		return decision.Record{}, diff.View{}, err
	}

	if s.analyzer == nil {
		return decision.Record{}, diff.View{}, ErrNoAnalyzer
	}

	tok := s.ctrl.Capture()

	next, err := s.analyzer.Refine(ctx, current.Input, current.Analysis, instruction)
	if err != nil {
		return decision.Record{}, diff.View{}, fmt.Errorf("refine decision: %w", err)
	}
	updated := decision.Refine(current, next, instruction, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.Valid(tok) {
		return decision.Record{}, diff.View{}, ErrScopeChanged
	}
	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decision.Record{}, diff.View{}, ErrNotFound
	}
	if err := tok.Backend.UpsertRecord(ctx, tok.OwnerID, updated); err != nil {
		return decision.Record{}, diff.View{}, fmt.Errorf("persist record: %w", err)
	}
	s.records[idx] = updated
	return updated, diff.Compute(&current.Analysis, next), nil
}

// Delete removes one record. It reports whether the deleted record was
// the selected one, so callers can clear their open view.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tok := s.ctrl.Capture()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.Valid(tok) {
		return false, ErrScopeChanged
	}
	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrNotFound
	}
	if err := tok.Backend.RemoveRecord(ctx, tok.OwnerID, id); err != nil {
		return false, fmt.Errorf("remove record: %w", err)
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	wasSelected := s.selectedID == id
	if wasSelected {
		s.selectedID = ""
	}
	return wasSelected, nil
}

// ClearAll empties the working set. Backends that refuse bulk deletion
// surface store.ErrBulkDeleteUnsupported and nothing changes.
func (s *Store) ClearAll(ctx context.Context) error {
	tok := s.ctrl.Capture()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctrl.Valid(tok) {
		return ErrScopeChanged
	}
	if err := tok.Backend.ClearRecords(ctx, tok.OwnerID); err != nil {
		return err
	}
	s.records = nil
	s.selectedID = ""
	return nil
}

// Timeline returns the ordered version list for one record.
func (s *Store) Timeline(id string) ([]decision.Version, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return decision.Timeline(rec), nil
}

// Compare diffs two versions of one record by timeline index.
func (s *Store) Compare(id string, from, to int) (diff.View, error) {
	rec, err := s.Get(id)
	if err != nil {
		return diff.View{}, err
	}
	tl := decision.Timeline(rec)
	if from < 0 || from >= len(tl) || to < 0 || to >= len(tl) {
		return diff.View{}, fmt.Errorf("%w (record has %d versions)", ErrVersionRange, len(tl))
	}
	prev := tl[from].Analysis
	return diff.Compute(&prev, tl[to].Analysis), nil
}
