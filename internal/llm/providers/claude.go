package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-playground/validator/v10"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

// Analysis is the verdict parsed from a model response
type Analysis struct {
	Score          int      `json:"score" validate:"gte=0,lte=100"`
	RoleType       string   `json:"role_type" validate:"required,oneof=pm vc other"`
	Reasoning      string   `json:"reasoning" validate:"required"`
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	Recommendation string   `json:"recommendation" validate:"omitempty,oneof=apply consider skip"`
	Strategy       string   `json:"strategy,omitempty"`
}

type messageFunc func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)

// ClaudeProvider implements the reasoning provider using Anthropic's Claude
type ClaudeProvider struct {
	send     messageFunc
	config   *config.Config
	validate *validator.Validate
	logger   types.Logger
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.LLM.APIKey)}
	if cfg.LLM.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.LLM.Timeout))
	}
	client := anthropic.NewClient(opts...)

	return &ClaudeProvider{
		send: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			return client.Messages.New(ctx, params)
		},
		config:   cfg,
		validate: validator.New(),
		logger:   logging.GetGlobalLogger().WithField("provider", "claude"),
	}
}

// Analyze scores a posting against the criteria with Claude
func (cp *ClaudeProvider) Analyze(ctx context.Context, text string, criteria models.Criteria) (*Analysis, error) {
	startTime := time.Now()

	response, err := cp.send(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.config.LLM.Model),
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: BuildAnalysisPrompt(text, criteria)},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	var responseText string
	for _, content := range response.Content {
		if t := content.AsText(); t.Text != "" {
			responseText = t.Text
			break
		}
	}

	analysis, err := cp.ParseAnalysis(responseText)
	if err != nil {
		return nil, err
	}

	cp.logger.Debug("Claude analysis completed", map[string]interface{}{
		"score":           analysis.Score,
		"role_type":       analysis.RoleType,
		"processing_time": time.Since(startTime).String(),
	})
	return analysis, nil
}

// BuildAnalysisPrompt renders the scoring rubric and the posting into one prompt
func BuildAnalysisPrompt(text string, criteria models.Criteria) string {
	list := func(items []string) string {
		if len(items) == 0 {
			return "any"
		}
		return strings.Join(items, ", ")
	}

	return fmt.Sprintf(`Analyze this job posting for relevance to a candidate targeting product management or venture capital roles in deep tech.

CANDIDATE PREFERENCES:
- Target roles: %s; %s
- Industries: %s
- Valued background signals: %s
- Locations: %s
- Company stages: %s
- Not interested in: %s

JOB POSTING:
%s

SCORING CRITERIA:
- Role alignment with target roles: 40 points
- Industry relevance: 25 points
- Technical depth requirement (needs hardware/technical background): 20 points
- Location match: 10 points
- Company stage match: 5 points

Return ONLY a JSON object (no other text) with this exact structure:
{
  "score": <integer 0-100>,
  "role_type": "<pm|vc|other>",
  "reasoning": "<2-3 sentence explanation of the score>",
  "pros": ["<strength>", "..."],
  "cons": ["<concern>", "..."],
  "recommendation": "<apply|consider|skip>",
  "strategy": "<one sentence on how to approach the application>"
}`,
		list(criteria.PMTerms), list(criteria.VCTerms), list(criteria.Industries),
		list(criteria.TechnicalSignals), list(criteria.Locations), list(criteria.Stages),
		list(criteria.ExcludeKeywords), text)
}

// ParseAnalysis decodes and validates a model response
func (cp *ClaudeProvider) ParseAnalysis(responseText string) (*Analysis, error) {
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, fmt.Errorf("no text content in Claude response")
	}

	// Clean the response - remove any markdown code blocks if present
	if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(responseText), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response from Claude: %w", err)
	}
	analysis.RoleType = strings.ToLower(strings.TrimSpace(analysis.RoleType))
	analysis.Recommendation = strings.ToLower(strings.TrimSpace(analysis.Recommendation))

	if err := cp.validate.Struct(&analysis); err != nil {
		return nil, fmt.Errorf("invalid Claude analysis: %w", err)
	}
	return &analysis, nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.send(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.config.LLM.Model),
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
