package store

import (
	"context"
	"testing"

	"decisio/api/internal/decision"
)

func openTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleRecord(id string, createdAt int64) decision.Record {
	return decision.Record{
		ID:        id,
		Title:     "Which laptop should I buy?",
		CreatedAt: createdAt,
		Input: decision.DecisionInput{
			Question: "Which laptop should I buy?",
			Options: []decision.OptionItem{
				{ID: "opt_1", Kind: "text", Label: "MacBook Air"},
				{ID: "opt_2", Kind: "text", Label: "ThinkPad X1"},
			},
			Criteria: []decision.Criterion{{ID: "crit_1", Name: "Price", Weight: 4}},
		},
		Analysis: decision.AnalysisResult{
			Summary: "Two solid machines.",
			CriteriaAnalysis: []decision.CriterionAnalysis{
				{Name: "Price", Weight: 4, Explanation: "Budget."},
			},
			OptionsAnalysis: []decision.AnalysisOption{
				{Name: "MacBook Air", TotalScore: 24},
				{Name: "ThinkPad X1", TotalScore: 28},
			},
			Recommendation: decision.Recommendation{SuggestedOption: "ThinkPad X1"},
		},
	}
}

func TestLocalLoadEmpty(t *testing.T) {
	l := openTestLocal(t)
	records, err := l.LoadRecords(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d", len(records))
	}
}

func TestLocalUpsertAndRoundTrip(t *testing.T) {
	l := openTestLocal(t)
	ctx := context.Background()

	rec := sampleRecord("dec_1", 1000)
	if err := l.UpsertRecord(ctx, "", rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := l.LoadRecords(ctx, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Analysis.Recommendation.SuggestedOption != "ThinkPad X1" {
		t.Fatalf("analysis lost in round trip: %+v", records[0].Analysis)
	}
}

func TestLocalUpsertPrependsNewAndReplacesExisting(t *testing.T) {
	l := openTestLocal(t)
	ctx := context.Background()

	if err := l.UpsertRecord(ctx, "", sampleRecord("dec_1", 1000)); err != nil {
		t.Fatalf("upsert first: %v", err)
	}
	if err := l.UpsertRecord(ctx, "", sampleRecord("dec_2", 2000)); err != nil {
		t.Fatalf("upsert second: %v", err)
	}

	records, _ := l.LoadRecords(ctx, "")
	if records[0].ID != "dec_2" {
		t.Fatalf("expected newest record first, got %s", records[0].ID)
	}

	updated := sampleRecord("dec_1", 1000)
	updated.Title = "Updated title"
	if err := l.UpsertRecord(ctx, "", updated); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	records, _ = l.LoadRecords(ctx, "")
	if len(records) != 2 {
		t.Fatalf("replace should not grow the list, got %d", len(records))
	}
	if records[1].Title != "Updated title" {
		t.Fatalf("record not replaced in place: %q", records[1].Title)
	}
}

func TestLocalRemoveAndClear(t *testing.T) {
	l := openTestLocal(t)
	ctx := context.Background()

	_ = l.UpsertRecord(ctx, "", sampleRecord("dec_1", 1000))
	_ = l.UpsertRecord(ctx, "", sampleRecord("dec_2", 2000))

	if err := l.RemoveRecord(ctx, "", "dec_1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	records, _ := l.LoadRecords(ctx, "")
	if len(records) != 1 || records[0].ID != "dec_2" {
		t.Fatalf("unexpected records after remove: %+v", records)
	}

	if err := l.RemoveRecord(ctx, "", "missing"); err != nil {
		t.Fatalf("removing absent id should be a no-op: %v", err)
	}

	if err := l.ClearRecords(ctx, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	records, _ = l.LoadRecords(ctx, "")
	if len(records) != 0 {
		t.Fatalf("expected empty list after clear, got %d", len(records))
	}
}

func TestLocalSettingsAndOnboarded(t *testing.T) {
	l := openTestLocal(t)
	ctx := context.Background()

	s, err := l.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s != (Settings{}) {
		t.Fatalf("expected zero settings, got %+v", s)
	}

	want := Settings{DisplayName: "Ana", Email: "ana@example.com", Theme: "dark"}
	if err := l.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	s, _ = l.Settings(ctx)
	if s != want {
		t.Fatalf("settings round trip mismatch: %+v", s)
	}

	done, _ := l.Onboarded(ctx)
	if done {
		t.Fatal("expected onboarded false by default")
	}
	if err := l.SetOnboarded(ctx, true); err != nil {
		t.Fatalf("set onboarded: %v", err)
	}
	done, _ = l.Onboarded(ctx)
	if !done {
		t.Fatal("onboarded flag not persisted")
	}
}
