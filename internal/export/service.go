package export

import (
	"fmt"
	"strings"
	"time"

	"decisio/api/internal/decision"
)

// Service renders decision records into downloadable reports.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Export renders one version of a record in the requested format.
func (s *Service) Export(rec decision.Record, req Request) (*Result, error) {
	versions := decision.Timeline(rec)
	idx := req.Version
	if idx < 0 {
		idx = len(versions) - 1
	}
	if idx < 0 || idx >= len(versions) {
		return nil, fmt.Errorf("%w: version %d of %d", ErrVersionOutOfRange, req.Version, len(versions))
	}
	version := versions[idx]

	data := buildTemplateData(rec, version, len(versions))

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, rec.Title)
	case FormatDOCX:
		return exportDOCX(html, rec.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func buildTemplateData(rec decision.Record, version decision.Version, versionCount int) TemplateData {
	analysis := version.Analysis

	data := TemplateData{
		Title:               rec.Title,
		Question:            rec.Input.Question,
		SafetyWarning:       analysis.SafetyWarning,
		Summary:             analysis.Summary,
		GeneratedAt:         time.UnixMilli(version.Timestamp),
		Version:             version.Index + 1,
		VersionCount:        versionCount,
		Instruction:         version.Instruction,
		Recommended:         analysis.Recommendation.SuggestedOption,
		Reasoning:           analysis.Recommendation.Reasoning,
		ReflectionQuestions: analysis.ReflectionQuestions,
	}

	for _, c := range analysis.CriteriaAnalysis {
		data.Criteria = append(data.Criteria, TemplateCriterion{
			Name:        c.Name,
			Weight:      c.Weight,
			Explanation: c.Explanation,
		})
	}

	for _, opt := range analysis.OptionsAnalysis {
		item := TemplateOption{
			Name:       strings.TrimPrefix(opt.Name, decision.SuggestionPrefix),
			Suggested:  opt.IsSuggestion(),
			Unrated:    opt.Unrated(),
			TotalScore: opt.TotalScore,
		}
		for _, score := range opt.Scores {
			item.Scores = append(item.Scores, TemplateScore{
				Criterion: score.CriterionName,
				Score:     score.Score,
			})
		}
		item.Pros = opt.Pros
		item.Cons = opt.Cons
		data.Options = append(data.Options, item)
	}

	return data
}
