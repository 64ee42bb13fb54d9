package diff

import (
	"testing"

	"decisio/api/internal/decision"
)

func result(rec string, opts ...decision.AnalysisOption) decision.AnalysisResult {
	return decision.AnalysisResult{
		Summary:          "summary",
		CriteriaAnalysis: []decision.CriterionAnalysis{{Name: "Price", Weight: 3}},
		OptionsAnalysis:  opts,
		Recommendation:   decision.Recommendation{SuggestedOption: rec},
	}
}

func option(name string, total float64, scores ...decision.CriterionScore) decision.AnalysisOption {
	return decision.AnalysisOption{Name: name, TotalScore: total, Scores: scores}
}

func TestComputeNilPrevious(t *testing.T) {
	view := Compute(nil, result("A", option("A", 10)))
	if view.RecommendationChanged || len(view.Options) != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}

func TestComputeSafetyOnlySides(t *testing.T) {
	safety := decision.AnalysisResult{SafetyWarning: "refused"}
	prev := result("A", option("A", 10))
	if view := Compute(&prev, safety); len(view.Options) != 0 {
		t.Fatalf("safety-only current should yield empty view, got %+v", view)
	}
	if view := Compute(&safety, prev); len(view.Options) != 0 {
		t.Fatalf("safety-only previous should yield empty view, got %+v", view)
	}
}

func TestComputeRecommendationAndScoreDeltas(t *testing.T) {
	prev := result("A",
		option("A", 20, decision.CriterionScore{CriterionName: "Price", Score: 5}),
		option("B", 18, decision.CriterionScore{CriterionName: "Price", Score: 4}),
	)
	cur := result("B",
		option("A", 16, decision.CriterionScore{CriterionName: "Price", Score: 4}),
		option("B", 24, decision.CriterionScore{CriterionName: "Price", Score: 6}),
	)

	view := Compute(&prev, cur)
	if !view.RecommendationChanged {
		t.Fatal("expected recommendation change")
	}
	if view.PreviousRecommendation != "A" || view.CurrentRecommendation != "B" {
		t.Fatalf("unexpected recommendation pair %q -> %q", view.PreviousRecommendation, view.CurrentRecommendation)
	}
	if len(view.Options) != 2 {
		t.Fatalf("expected 2 option deltas, got %d", len(view.Options))
	}
	a := view.Options[0]
	if a.TotalDelta != -4 {
		t.Fatalf("expected option A total delta -4, got %v", a.TotalDelta)
	}
	if len(a.Scores) != 1 || a.Scores[0].Delta != -1 {
		t.Fatalf("unexpected score deltas for A: %+v", a.Scores)
	}
}

func TestComputeNewAndRemovedOptions(t *testing.T) {
	prev := result("A", option("A", 20), option("Old", 12))
	cur := result("A", option("A", 20), option("Fresh", 15))

	view := Compute(&prev, cur)
	var sawNew, sawRemoved bool
	for _, d := range view.Options {
		switch d.Name {
		case "Fresh":
			sawNew = d.New
		case "Old":
			sawRemoved = d.Removed
		}
	}
	if !sawNew || !sawRemoved {
		t.Fatalf("expected new and removed markers, got %+v", view.Options)
	}
}

func TestComputeSkipsUnratedOptions(t *testing.T) {
	prev := result("A", option("A", decision.UnratedScore,
		decision.CriterionScore{CriterionName: "Price", Score: decision.UnratedScore}))
	cur := result("A", option("A", 20,
		decision.CriterionScore{CriterionName: "Price", Score: 5}))

	view := Compute(&prev, cur)
	if len(view.Options) != 1 {
		t.Fatalf("expected 1 option delta, got %d", len(view.Options))
	}
	if view.Options[0].TotalDelta != 0 || len(view.Options[0].Scores) != 0 {
		t.Fatalf("unrated option should produce no deltas, got %+v", view.Options[0])
	}
}
