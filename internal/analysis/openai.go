package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"decisio/api/internal/decision"
)

const maxCompletionTokens = 4096

// Client is an Analyzer backed by an OpenAI-compatible chat API.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a client for the given API key and model. A
// non-empty baseURL points the client at a compatible endpoint, which
// tests use to stub the API.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = maxCompletionTokens
	} else {
		req.MaxTokens = maxCompletionTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Analyze runs a full analysis of the user's decision input.
func (c *Client) Analyze(ctx context.Context, input decision.DecisionInput, userName string) (decision.AnalysisResult, error) {
	content, err := c.complete(ctx, analysisSystemPrompt, analysisUserPrompt(input, userName))
	if err != nil {
		return decision.AnalysisResult{}, err
	}
	return parseResult(content)
}

// Refine re-runs the analysis applying the user's instruction on top of
// the current version.
func (c *Client) Refine(ctx context.Context, input decision.DecisionInput, current decision.AnalysisResult, instruction string) (decision.AnalysisResult, error) {
	content, err := c.complete(ctx, refineSystemPrompt, refineUserPrompt(input, current, instruction))
	if err != nil {
		return decision.AnalysisResult{}, err
	}
	return parseResult(content)
}

// SuggestQuestion rewrites a rough draft into a clear decision question.
func (c *Client) SuggestQuestion(ctx context.Context, draft string) (string, error) {
	content, err := c.complete(ctx, suggestQuestionSystemPrompt, draft)
	if err != nil {
		return "", err
	}
	var out struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return "", fmt.Errorf("decode question suggestion: %w", err)
	}
	if strings.TrimSpace(out.Question) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Question), nil
}

// SuggestOptions proposes candidate answers for a question.
func (c *Client) SuggestOptions(ctx context.Context, question string) ([]string, error) {
	content, err := c.complete(ctx, suggestOptionsSystemPrompt, question)
	if err != nil {
		return nil, err
	}
	var out struct {
		Options []string `json:"options"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return nil, fmt.Errorf("decode option suggestions: %w", err)
	}
	if len(out.Options) == 0 {
		return nil, ErrEmptyResponse
	}
	return out.Options, nil
}

// SuggestCriteria proposes weighted judging criteria for a question.
func (c *Client) SuggestCriteria(ctx context.Context, question string) ([]CriterionSuggestion, error) {
	content, err := c.complete(ctx, suggestCriteriaSystemPrompt, question)
	if err != nil {
		return nil, err
	}
	var out struct {
		Criteria []CriterionSuggestion `json:"criteria"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &out); err != nil {
		return nil, fmt.Errorf("decode criterion suggestions: %w", err)
	}
	if len(out.Criteria) == 0 {
		return nil, ErrEmptyResponse
	}
	for i := range out.Criteria {
		if out.Criteria[i].Weight < decision.MinWeight {
			out.Criteria[i].Weight = decision.MinWeight
		}
		if out.Criteria[i].Weight > decision.MaxWeight {
			out.Criteria[i].Weight = decision.MaxWeight
		}
	}
	return out.Criteria, nil
}

func parseResult(content string) (decision.AnalysisResult, error) {
	var res decision.AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(content)), &res); err != nil {
		return decision.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	if err := res.Validate(); err != nil {
		return decision.AnalysisResult{}, fmt.Errorf("invalid analysis payload: %w", err)
	}
	res.PadOptions()
	return res, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
