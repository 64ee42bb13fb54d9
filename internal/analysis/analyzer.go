// Package analysis turns a stated decision into a structured analysis
// via a chat-completion model.
package analysis

import (
	"context"
	"errors"

	"decisio/api/internal/decision"
)

var (
	// ErrEmptyResponse means the model returned no usable content.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// CriterionSuggestion is one suggested judging criterion with a
// starting weight.
type CriterionSuggestion struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// Analyzer produces and refines decision analyses.
type Analyzer interface {
	Analyze(ctx context.Context, input decision.DecisionInput, userName string) (decision.AnalysisResult, error)
	Refine(ctx context.Context, input decision.DecisionInput, current decision.AnalysisResult, instruction string) (decision.AnalysisResult, error)
	SuggestQuestion(ctx context.Context, draft string) (string, error)
	SuggestOptions(ctx context.Context, question string) ([]string, error)
	SuggestCriteria(ctx context.Context, question string) ([]CriterionSuggestion, error)
}
