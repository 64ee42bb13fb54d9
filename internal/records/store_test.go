package records

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"decisio/api/internal/analysis"
	"decisio/api/internal/auth"
	"decisio/api/internal/decision"
	"decisio/api/internal/reconcile"
	"decisio/api/internal/store"
)

type fakeBackend struct {
	mu        sync.Mutex
	records   map[string][]decision.Record
	upsertErr error
	clearErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: map[string][]decision.Record{}}
}

func (f *fakeBackend) LoadRecords(_ context.Context, ownerID string) ([]decision.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decision.Record(nil), f.records[ownerID]...), nil
}

func (f *fakeBackend) UpsertRecord(_ context.Context, ownerID string, rec decision.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for i, r := range f.records[ownerID] {
		if r.ID == rec.ID {
			f.records[ownerID][i] = rec
			return nil
		}
	}
	f.records[ownerID] = append(f.records[ownerID], rec)
	return nil
}

func (f *fakeBackend) RemoveRecord(_ context.Context, ownerID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.records[ownerID][:0]
	for _, r := range f.records[ownerID] {
		if r.ID != recordID {
			out = append(out, r)
		}
	}
	f.records[ownerID] = out
	return nil
}

func (f *fakeBackend) ClearRecords(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.records[ownerID] = nil
	return nil
}

type fakeAnalyzer struct {
	analyzeFn func() (decision.AnalysisResult, error)
	refineFn  func() (decision.AnalysisResult, error)
}

func (f *fakeAnalyzer) Analyze(context.Context, decision.DecisionInput, string) (decision.AnalysisResult, error) {
	if f.analyzeFn != nil {
		return f.analyzeFn()
	}
	return baseResult("Option A"), nil
}

func (f *fakeAnalyzer) Refine(context.Context, decision.DecisionInput, decision.AnalysisResult, string) (decision.AnalysisResult, error) {
	if f.refineFn != nil {
		return f.refineFn()
	}
	res := baseResult("Option B")
	res.ChangesFromPrevious = []string{"Recommendation flipped."}
	return res, nil
}

func (f *fakeAnalyzer) SuggestQuestion(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeAnalyzer) SuggestOptions(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeAnalyzer) SuggestCriteria(context.Context, string) ([]analysis.CriterionSuggestion, error) {
	return nil, nil
}

func baseResult(recommended string) decision.AnalysisResult {
	return decision.AnalysisResult{
		Summary:          "summary",
		CriteriaAnalysis: []decision.CriterionAnalysis{{Name: "Price", Weight: 3}},
		OptionsAnalysis: []decision.AnalysisOption{
			{Name: "Option A", TotalScore: 20, Scores: []decision.CriterionScore{{CriterionName: "Price", Score: 5}}},
			{Name: "Option B", TotalScore: 24, Scores: []decision.CriterionScore{{CriterionName: "Price", Score: 6}}},
		},
		Recommendation: decision.Recommendation{SuggestedOption: recommended},
	}
}

func testInput() decision.DecisionInput {
	return decision.DecisionInput{
		Question: "Which option should I pick?",
		Options: []decision.OptionItem{
			{ID: "opt_1", Kind: "text", Label: "Option A"},
			{ID: "opt_2", Kind: "text", Label: "Option B"},
		},
		Criteria: []decision.Criterion{{ID: "crit_1", Name: "Price", Weight: 3}},
	}
}

func newTestStore(t *testing.T, local, remote *fakeBackend, az *fakeAnalyzer) (*Store, *reconcile.Controller) {
	t.Helper()
	ctrl := reconcile.New(local, remote)
	s := New(ctrl, az)
	s.now = func() time.Time { return time.UnixMilli(5000) }
	n := 0
	s.newID = func() string { n++; return "dec_" + string(rune('a'+n-1)) }
	ctrl.Attach(s)
	if err := ctrl.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s, ctrl
}

func TestAnalyzeCreatesAndSelectsRecord(t *testing.T) {
	local := newFakeBackend()
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})

	rec, err := s.Analyze(context.Background(), testInput(), "Ana")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rec.Title != "Which option should I pick?" {
		t.Fatalf("unexpected title %q", rec.Title)
	}
	if rec.CreatedAt != 5000 {
		t.Fatalf("expected createdAt 5000, got %d", rec.CreatedAt)
	}
	if len(local.records[""]) != 1 {
		t.Fatal("record not persisted to local backend")
	}
	if sel, ok := s.Selected(); !ok || sel.ID != rec.ID {
		t.Fatal("new record should be selected")
	}
}

func TestAnalyzePersistFailureLeavesNothing(t *testing.T) {
	local := newFakeBackend()
	local.upsertErr = errors.New("disk full")
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})

	if _, err := s.Analyze(context.Background(), testInput(), ""); err == nil {
		t.Fatal("expected persist failure")
	}
	if len(s.List()) != 0 {
		t.Fatal("failed analyze must not appear in the working set")
	}
}

func TestRefineAppendsHistory(t *testing.T) {
	local := newFakeBackend()
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})
	rec, _ := s.Analyze(context.Background(), testInput(), "")

	updated, view, err := s.Refine(context.Background(), rec.ID, "weight price more")
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(updated.RefinementHistory) != 1 {
		t.Fatalf("expected 1 history item, got %d", len(updated.RefinementHistory))
	}
	if updated.RefinementHistory[0].Instruction != "weight price more" {
		t.Fatalf("unexpected instruction %q", updated.RefinementHistory[0].Instruction)
	}
	if !view.RecommendationChanged {
		t.Fatal("expected recommendation change in diff view")
	}
	persisted := local.records[""][0]
	if len(persisted.RefinementHistory) != 1 {
		t.Fatal("refined record not persisted")
	}
}

func TestRefinePersistFailureLeavesRecordUnchanged(t *testing.T) {
	local := newFakeBackend()
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})
	rec, _ := s.Analyze(context.Background(), testInput(), "")

	local.upsertErr = errors.New("connection reset")
	if _, _, err := s.Refine(context.Background(), rec.ID, "tweak"); err == nil {
		t.Fatal("expected persist failure")
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.RefinementHistory) != 0 {
		t.Fatal("failed refine must leave the record exactly as it was")
	}
	if got.Analysis.Recommendation.SuggestedOption != "Option A" {
		t.Fatalf("analysis mutated by failed refine: %+v", got.Analysis.Recommendation)
	}
}

func TestRefineUnknownRecord(t *testing.T) {
	s, _ := newTestStore(t, newFakeBackend(), newFakeBackend(), &fakeAnalyzer{})
	if _, _, err := s.Refine(context.Background(), "missing", "tweak"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReportsSelection(t *testing.T) {
	local := newFakeBackend()
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})
	first, _ := s.Analyze(context.Background(), testInput(), "")
	second, _ := s.Analyze(context.Background(), testInput(), "")

	// second is selected; deleting first must not clear the selection.
	wasSelected, err := s.Delete(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if wasSelected {
		t.Fatal("unselected record reported as selected")
	}

	wasSelected, err = s.Delete(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("delete selected: %v", err)
	}
	if !wasSelected {
		t.Fatal("selected record deletion not reported")
	}
	if _, ok := s.Selected(); ok {
		t.Fatal("selection should be cleared")
	}
	if len(local.records[""]) != 0 {
		t.Fatal("records not removed from backend")
	}
}

func TestClearAllUnsupportedLeavesRecords(t *testing.T) {
	local := newFakeBackend()
	local.clearErr = store.ErrBulkDeleteUnsupported
	s, _ := newTestStore(t, local, newFakeBackend(), &fakeAnalyzer{})
	_, _ = s.Analyze(context.Background(), testInput(), "")

	err := s.ClearAll(context.Background())
	if !errors.Is(err, store.ErrBulkDeleteUnsupported) {
		t.Fatalf("expected ErrBulkDeleteUnsupported, got %v", err)
	}
	if len(s.List()) != 1 {
		t.Fatal("unsupported clear must leave the working set intact")
	}
}

func TestAnalyzeDiscardedAfterScopeSwitch(t *testing.T) {
	local := newFakeBackend()
	remote := newFakeBackend()
	var ctrl *reconcile.Controller
	az := &fakeAnalyzer{}
	az.analyzeFn = func() (decision.AnalysisResult, error) {
		// A sign-in lands while the model call is in flight.
		if err := ctrl.SignIn(context.Background(), auth.Account{UserID: "usr_1"}); err != nil {
			t.Fatalf("sign in during analyze: %v", err)
		}
		return baseResult("Option A"), nil
	}
	s, c := newTestStore(t, local, remote, az)
	ctrl = c

	_, err := s.Analyze(context.Background(), testInput(), "")
	if !errors.Is(err, ErrScopeChanged) {
		t.Fatalf("expected ErrScopeChanged, got %v", err)
	}
	if len(local.records[""]) != 0 || len(remote.records["usr_1"]) != 0 {
		t.Fatal("stale write must not reach either backend")
	}
}

func TestCompareVersions(t *testing.T) {
	s, _ := newTestStore(t, newFakeBackend(), newFakeBackend(), &fakeAnalyzer{})
	rec, _ := s.Analyze(context.Background(), testInput(), "")
	_, _, _ = s.Refine(context.Background(), rec.ID, "tweak")

	view, err := s.Compare(rec.ID, 0, 1)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !view.RecommendationChanged {
		t.Fatal("expected recommendation change between versions")
	}

	if _, err := s.Compare(rec.ID, 0, 9); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
