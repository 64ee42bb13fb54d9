package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"decisio/api/internal/decision"
)

const analysisSystemPrompt = `You are a careful decision-analysis assistant. You help people think
through a decision by scoring their options against their own weighted
criteria. You always respond with a single JSON object and nothing else.

The JSON object must have exactly these fields:
  "safetyWarning": string or omitted. If the question involves self-harm,
    violence, or anything you must refuse, set this to a short empathetic
    warning and leave every other field empty.
  "summary": one or two sentences restating the decision in neutral terms.
  "criteriaAnalysis": array of {"name","weight","explanation"} restating
    each criterion and why it matters here. Keep the user's weights.
  "optionsAnalysis": array of {"name","pros","cons","scores","totalScore"}.
    "scores" is an array of {"criterionName","score"} with score 1-10.
    "totalScore" is the weighted sum of scores times criterion weights.
  "recommendation": {"suggestedOption","reasoning"} naming the option
    with the strongest case and a short list of reasons.
  "reflectionQuestions": 2-4 questions that would sharpen the decision.

Rules:
- Analyze every option the user provided, in the order given.
- If the user provided fewer than 4 options, add plausible alternatives
  until there are at least 4. Prefix each added option's name with
  "[Suggestion] " and set every one of its scores and its totalScore
  to -1. Never score a suggested option.
- Never invent criteria; only score against the criteria given.
- Be concrete and even-handed; pros and cons must not be padding.`

const refineSystemPrompt = analysisSystemPrompt + `

You are refining a previous analysis of the same decision. Apply the
user's instruction, keep everything the instruction does not touch, and
add one extra field to the JSON object:
  "changesFromPrevious": an array of short bullet strings, each naming
    one concrete change compared with the previous analysis and why.`

const suggestQuestionSystemPrompt = `You help people phrase a decision question. Given a rough draft, return
a single JSON object {"question": "..."} with one clear, specific,
answerable decision question. Respond with JSON only.`

const suggestOptionsSystemPrompt = `You help people enumerate candidate answers to a decision question.
Return a single JSON object {"options": ["...", ...]} with 3 to 5 short,
distinct, realistic options. Respond with JSON only.`

const suggestCriteriaSystemPrompt = `You help people choose judging criteria for a decision question.
Return a single JSON object {"criteria": [{"name": "...", "weight": N}, ...]}
with 3 to 5 criteria, each weight an integer from 1 to 5 reflecting how
much that criterion usually matters for such a decision. Respond with
JSON only.`

func analysisUserPrompt(input decision.DecisionInput, userName string) string {
	var b strings.Builder
	if userName != "" {
		fmt.Fprintf(&b, "The person deciding is called %s.\n\n", userName)
	}
	fmt.Fprintf(&b, "Decision question: %s\n\nOptions:\n", input.Question)
	for i, opt := range input.Options {
		label := opt.Label
		if label == "" {
			label = fmt.Sprintf("(attached %s)", nonEmpty(opt.MediaType, "media"))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	b.WriteString("\nCriteria (name, weight 1-5):\n")
	for _, c := range input.Criteria {
		fmt.Fprintf(&b, "- %s: %d\n", c.Name, c.Weight)
	}
	return b.String()
}

func refineUserPrompt(input decision.DecisionInput, current decision.AnalysisResult, instruction string) string {
	var b strings.Builder
	b.WriteString(analysisUserPrompt(input, ""))
	b.WriteString("\nPrevious analysis (JSON):\n")
	if raw, err := json.Marshal(current); err == nil {
		b.Write(raw)
	}
	fmt.Fprintf(&b, "\n\nRefinement instruction: %s\n", instruction)
	return b.String()
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
