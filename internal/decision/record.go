package decision

import (
	"fmt"
	"strings"
)

const (
	// UnratedScore marks an option the model was asked not to rate,
	// typically a suggested option the user has not confirmed yet.
	UnratedScore = -1

	// MinScore and MaxScore bound every rated criterion score.
	MinScore = 1
	MaxScore = 10

	// MinWeight and MaxWeight bound criterion weights.
	MinWeight = 1
	MaxWeight = 5

	// SuggestionPrefix marks option names the model invented to pad a
	// thin option list. Suggested options stay unrated.
	SuggestionPrefix = "[Suggestion] "

	// MinAnalyzedOptions is the smallest option list an analysis may
	// carry. Thinner lists get padded with unrated suggestions.
	MinAnalyzedOptions = 4
)

// Criterion is one user-supplied judging dimension with its weight.
type Criterion struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// OptionItem is one candidate answer. An option may be plain text, an
// inline media payload, or a reference to an uploaded object.
type OptionItem struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Label        string `json:"label"`
	MediaPayload []byte `json:"mediaPayload,omitempty"`
	MediaRef     string `json:"mediaRef,omitempty"`
	MediaType    string `json:"mediaType,omitempty"`
}

// Valid reports whether the option carries any usable content.
func (o OptionItem) Valid() bool {
	return strings.TrimSpace(o.Label) != "" || len(o.MediaPayload) > 0 || o.MediaRef != ""
}

// DecisionInput is everything the user states about a decision before
// analysis runs.
type DecisionInput struct {
	Question string       `json:"question"`
	Options  []OptionItem `json:"options"`
	Criteria []Criterion  `json:"criteria"`
}

// DefaultCriterion is applied when the user supplies no criteria at all.
func DefaultCriterion() Criterion {
	return Criterion{ID: "crit_default", Name: "General Benefit", Weight: 3}
}

// Normalize trims text fields and fills in the default criterion for an
// empty criteria list. It does not validate.
func (in *DecisionInput) Normalize() {
	in.Question = strings.TrimSpace(in.Question)
	for i := range in.Options {
		in.Options[i].Label = strings.TrimSpace(in.Options[i].Label)
	}
	for i := range in.Criteria {
		in.Criteria[i].Name = strings.TrimSpace(in.Criteria[i].Name)
	}
	if len(in.Criteria) == 0 {
		in.Criteria = []Criterion{DefaultCriterion()}
	}
}

// Validate checks that the input describes an analyzable decision:
// a real question, at least two usable options, and weights in range.
func (in DecisionInput) Validate() error {
	if len(strings.TrimSpace(in.Question)) < 4 {
		return fmt.Errorf("question is too short")
	}
	valid := 0
	for _, opt := range in.Options {
		if opt.Valid() {
			valid++
		}
	}
	if valid < 2 {
		return fmt.Errorf("at least two options are required")
	}
	for _, c := range in.Criteria {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("criterion name must not be empty")
		}
		if c.Weight < MinWeight || c.Weight > MaxWeight {
			return fmt.Errorf("criterion %q has weight %d outside %d..%d", c.Name, c.Weight, MinWeight, MaxWeight)
		}
	}
	return nil
}

// CriterionScore is one option's score against one named criterion.
type CriterionScore struct {
	CriterionName string `json:"criterionName"`
	Score         int    `json:"score"`
}

// AnalysisOption is the model's assessment of a single option.
type AnalysisOption struct {
	Name       string           `json:"name"`
	Pros       []string         `json:"pros"`
	Cons       []string         `json:"cons"`
	Scores     []CriterionScore `json:"scores"`
	TotalScore float64          `json:"totalScore"`
}

// Unrated reports whether the option was deliberately left unscored.
func (o AnalysisOption) Unrated() bool {
	return o.TotalScore == UnratedScore
}

// IsSuggestion reports whether the option name carries the suggestion
// marker prefix.
func (o AnalysisOption) IsSuggestion() bool {
	return strings.HasPrefix(o.Name, SuggestionPrefix)
}

// CriterionAnalysis restates one criterion with the model's reading of
// why it matters for this decision.
type CriterionAnalysis struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Explanation string `json:"explanation"`
}

// Recommendation names the option the model favors and why.
type Recommendation struct {
	SuggestedOption string   `json:"suggestedOption"`
	Reasoning       []string `json:"reasoning"`
}

// AnalysisResult is one complete structured analysis. A non-empty
// SafetyWarning with no option analysis means the question was refused.
type AnalysisResult struct {
	SafetyWarning       string              `json:"safetyWarning,omitempty"`
	Summary             string              `json:"summary"`
	CriteriaAnalysis    []CriterionAnalysis `json:"criteriaAnalysis"`
	OptionsAnalysis     []AnalysisOption    `json:"optionsAnalysis"`
	Recommendation      Recommendation      `json:"recommendation"`
	ReflectionQuestions []string            `json:"reflectionQuestions"`
	ChangesFromPrevious []string            `json:"changesFromPrevious,omitempty"`
}

// SafetyOnly reports whether the result is a refusal that carries no
// analysis content.
func (r AnalysisResult) SafetyOnly() bool {
	return r.SafetyWarning != "" && len(r.OptionsAnalysis) == 0
}

// PadOptions appends unrated suggestion placeholders until the result
// carries at least MinAnalyzedOptions options. Models are asked to do
// this padding themselves; this backstops the ones that don't.
// Safety-only results are left alone.
func (r *AnalysisResult) PadOptions() {
	if r.SafetyOnly() {
		return
	}
	for i := len(r.OptionsAnalysis); i < MinAnalyzedOptions; i++ {
		scores := make([]CriterionScore, 0, len(r.CriteriaAnalysis))
		for _, c := range r.CriteriaAnalysis {
			scores = append(scores, CriterionScore{CriterionName: c.Name, Score: UnratedScore})
		}
		r.OptionsAnalysis = append(r.OptionsAnalysis, AnalysisOption{
			Name:       fmt.Sprintf("%sAlternative %d", SuggestionPrefix, i+1),
			Scores:     scores,
			TotalScore: UnratedScore,
		})
	}
}

// Validate checks structural consistency of a model-produced result.
// Safety-only results are valid by definition.
func (r AnalysisResult) Validate() error {
	if r.SafetyOnly() {
		return nil
	}
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if len(r.OptionsAnalysis) == 0 {
		return fmt.Errorf("no options analyzed")
	}
	if len(r.CriteriaAnalysis) == 0 {
		return fmt.Errorf("no criteria analyzed")
	}
	if strings.TrimSpace(r.Recommendation.SuggestedOption) == "" {
		return fmt.Errorf("recommendation is empty")
	}
	for _, opt := range r.OptionsAnalysis {
		if err := validateOption(opt); err != nil {
			return err
		}
	}
	return nil
}

func validateOption(opt AnalysisOption) error {
	if strings.TrimSpace(opt.Name) == "" {
		return fmt.Errorf("option with empty name")
	}
	if opt.Unrated() {
		for _, s := range opt.Scores {
			if s.Score != UnratedScore {
				return fmt.Errorf("option %q is unrated but scores %q", opt.Name, s.CriterionName)
			}
		}
		return nil
	}
	if opt.TotalScore < 0 {
		return fmt.Errorf("option %q has negative total score", opt.Name)
	}
	for _, s := range opt.Scores {
		if s.Score == UnratedScore {
			continue
		}
		if s.Score < MinScore || s.Score > MaxScore {
			return fmt.Errorf("option %q scores %d on %q outside %d..%d", opt.Name, s.Score, s.CriterionName, MinScore, MaxScore)
		}
	}
	return nil
}

// HistoryItem is one superseded analysis together with the refinement
// instruction that replaced it. Timestamp is unix milliseconds.
type HistoryItem struct {
	Analysis    AnalysisResult `json:"analysis"`
	Instruction string         `json:"instruction"`
	Timestamp   int64          `json:"timestamp"`
}

// Record is one saved decision: the input, the current analysis, and
// the append-only chain of superseded versions.
type Record struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Input             DecisionInput  `json:"input"`
	Analysis          AnalysisResult `json:"analysis"`
	CreatedAt         int64          `json:"createdAt"`
	RefinementHistory []HistoryItem  `json:"refinementHistory"`
}
