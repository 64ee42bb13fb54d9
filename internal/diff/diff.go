// Package diff compares two analysis versions of the same decision and
// reports what moved between them.
package diff

import "decisio/api/internal/decision"

// ScoreDelta is the movement of one criterion score between versions.
type ScoreDelta struct {
	CriterionName string `json:"criterionName"`
	Previous      int    `json:"previous"`
	Current       int    `json:"current"`
	Delta         int    `json:"delta"`
}

// OptionDelta describes how one option changed between versions.
// New options carry only the current side, removed options only the
// previous side.
type OptionDelta struct {
	Name          string       `json:"name"`
	New           bool         `json:"new,omitempty"`
	Removed       bool         `json:"removed,omitempty"`
	PreviousTotal float64      `json:"previousTotal"`
	CurrentTotal  float64      `json:"currentTotal"`
	TotalDelta    float64      `json:"totalDelta"`
	Scores        []ScoreDelta `json:"scores,omitempty"`
}

// View is the full comparison between two analysis versions.
type View struct {
	RecommendationChanged  bool          `json:"recommendationChanged"`
	PreviousRecommendation string        `json:"previousRecommendation,omitempty"`
	CurrentRecommendation  string        `json:"currentRecommendation,omitempty"`
	Options                []OptionDelta `json:"options"`
}

// Compute compares prev against cur, matching options by name. A nil
// prev or a safety-only result on either side yields an empty view.
// Unrated options contribute no score deltas.
func Compute(prev *decision.AnalysisResult, cur decision.AnalysisResult) View {
	if prev == nil || prev.SafetyOnly() || cur.SafetyOnly() {
		return View{}
	}

	view := View{
		PreviousRecommendation: prev.Recommendation.SuggestedOption,
		CurrentRecommendation:  cur.Recommendation.SuggestedOption,
	}
	view.RecommendationChanged = view.PreviousRecommendation != view.CurrentRecommendation

	prevByName := make(map[string]decision.AnalysisOption, len(prev.OptionsAnalysis))
	for _, opt := range prev.OptionsAnalysis {
		prevByName[opt.Name] = opt
	}

	seen := make(map[string]bool, len(cur.OptionsAnalysis))
	for _, opt := range cur.OptionsAnalysis {
		seen[opt.Name] = true
		before, ok := prevByName[opt.Name]
		if !ok {
			view.Options = append(view.Options, OptionDelta{
				Name:         opt.Name,
				New:          true,
				CurrentTotal: opt.TotalScore,
			})
			continue
		}
		view.Options = append(view.Options, compareOption(before, opt))
	}

	for _, opt := range prev.OptionsAnalysis {
		if seen[opt.Name] {
			continue
		}
		view.Options = append(view.Options, OptionDelta{
			Name:          opt.Name,
			Removed:       true,
			PreviousTotal: opt.TotalScore,
		})
	}

	return view
}

func compareOption(before, after decision.AnalysisOption) OptionDelta {
	delta := OptionDelta{
		Name:          after.Name,
		PreviousTotal: before.TotalScore,
		CurrentTotal:  after.TotalScore,
	}
	if before.Unrated() || after.Unrated() {
		return delta
	}
	delta.TotalDelta = after.TotalScore - before.TotalScore

	prevScores := make(map[string]int, len(before.Scores))
	for _, s := range before.Scores {
		prevScores[s.CriterionName] = s.Score
	}
	for _, s := range after.Scores {
		p, ok := prevScores[s.CriterionName]
		if !ok || s.Score == decision.UnratedScore || p == decision.UnratedScore {
			continue
		}
		if p == s.Score {
			continue
		}
		delta.Scores = append(delta.Scores, ScoreDelta{
			CriterionName: s.CriterionName,
			Previous:      p,
			Current:       s.Score,
			Delta:         s.Score - p,
		})
	}
	return delta
}
