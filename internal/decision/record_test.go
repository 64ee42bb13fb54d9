package decision

import "testing"

func validInput() DecisionInput {
	return DecisionInput{
		Question: "Which laptop should I buy?",
		Options: []OptionItem{
			{ID: "opt_1", Kind: "text", Label: "MacBook Air"},
			{ID: "opt_2", Kind: "text", Label: "ThinkPad X1"},
		},
		Criteria: []Criterion{
			{ID: "crit_1", Name: "Price", Weight: 4},
			{ID: "crit_2", Name: "Battery life", Weight: 3},
		},
	}
}

func TestInputValidateRejectsShortQuestion(t *testing.T) {
	in := validInput()
	in.Question = "eh?"
	if err := in.Validate(); err == nil {
		t.Fatal("expected error for short question")
	}
}

func TestInputValidateRequiresTwoUsableOptions(t *testing.T) {
	in := validInput()
	in.Options[1].Label = "   "
	if err := in.Validate(); err == nil {
		t.Fatal("expected error for single usable option")
	}
	in.Options[1].MediaRef = "media/opt_2.png"
	if err := in.Validate(); err != nil {
		t.Fatalf("media-only option should count as usable: %v", err)
	}
}

func TestInputValidateWeightBounds(t *testing.T) {
	in := validInput()
	in.Criteria[0].Weight = 6
	if err := in.Validate(); err == nil {
		t.Fatal("expected error for weight above range")
	}
	in.Criteria[0].Weight = 0
	if err := in.Validate(); err == nil {
		t.Fatal("expected error for weight below range")
	}
}

func TestNormalizeFillsDefaultCriterion(t *testing.T) {
	in := validInput()
	in.Criteria = nil
	in.Normalize()
	if len(in.Criteria) != 1 {
		t.Fatalf("expected one default criterion, got %d", len(in.Criteria))
	}
	if in.Criteria[0].Name != "General Benefit" || in.Criteria[0].Weight != 3 {
		t.Fatalf("unexpected default criterion %+v", in.Criteria[0])
	}
}

func validResult() AnalysisResult {
	return AnalysisResult{
		Summary: "Both are solid machines with different trade-offs.",
		CriteriaAnalysis: []CriterionAnalysis{
			{Name: "Price", Weight: 4, Explanation: "Budget dominates this choice."},
		},
		OptionsAnalysis: []AnalysisOption{
			{
				Name:       "MacBook Air",
				Pros:       []string{"Battery"},
				Cons:       []string{"Price"},
				Scores:     []CriterionScore{{CriterionName: "Price", Score: 6}},
				TotalScore: 24,
			},
			{
				Name:       "ThinkPad X1",
				Pros:       []string{"Repairable"},
				Cons:       []string{"Heavier"},
				Scores:     []CriterionScore{{CriterionName: "Price", Score: 7}},
				TotalScore: 28,
			},
		},
		Recommendation:      Recommendation{SuggestedOption: "ThinkPad X1", Reasoning: []string{"Better value."}},
		ReflectionQuestions: []string{"How long do you plan to keep it?"},
	}
}

func TestResultValidate(t *testing.T) {
	if err := validResult().Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	r := validResult()
	r.Summary = ""
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for empty summary")
	}

	r = validResult()
	r.OptionsAnalysis[0].Scores[0].Score = 11
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for score above range")
	}

	r = validResult()
	r.Recommendation.SuggestedOption = ""
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for empty recommendation")
	}
}

func TestResultValidateUnratedConsistency(t *testing.T) {
	r := validResult()
	r.OptionsAnalysis[0].TotalScore = UnratedScore
	r.OptionsAnalysis[0].Scores[0].Score = 6
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for unrated option with a rated score")
	}
	r.OptionsAnalysis[0].Scores[0].Score = UnratedScore
	if err := r.Validate(); err != nil {
		t.Fatalf("fully unrated option rejected: %v", err)
	}
}

func TestSafetyOnlyResultIsValid(t *testing.T) {
	r := AnalysisResult{SafetyWarning: "This question involves self-harm."}
	if !r.SafetyOnly() {
		t.Fatal("expected safety-only result")
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("safety-only result rejected: %v", err)
	}
}

func TestIsSuggestion(t *testing.T) {
	opt := AnalysisOption{Name: SuggestionPrefix + "Refurbished model"}
	if !opt.IsSuggestion() {
		t.Fatal("expected suggestion marker to be detected")
	}
	if (AnalysisOption{Name: "MacBook Air"}).IsSuggestion() {
		t.Fatal("plain option flagged as suggestion")
	}
}
