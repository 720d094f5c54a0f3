package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/config"
	"jobscout/pkg/models"
)

func newTestProvider() *ClaudeProvider {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	return NewClaudeProvider(cfg)
}

func TestParseAnalysis(t *testing.T) {
	cp := newTestProvider()

	res, err := cp.ParseAnalysis("```json\n{\"score\": 86, \"role_type\": \"PM\", \"reasoning\": \"Hardware PM in London\", \"pros\": [\"hardware\"], \"recommendation\": \"apply\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, 86, res.Score)
	assert.Equal(t, "pm", res.RoleType)
	assert.Equal(t, []string{"hardware"}, res.Pros)
}

func TestParseAnalysisRejectsInvalid(t *testing.T) {
	cp := newTestProvider()

	tests := []struct {
		name string
		text string
	}{
		{"empty", "  "},
		{"not json", "I think this is a great fit"},
		{"score out of range", `{"score": 140, "role_type": "pm", "reasoning": "x"}`},
		{"unknown role", `{"score": 50, "role_type": "engineer", "reasoning": "x"}`},
		{"missing reasoning", `{"score": 50, "role_type": "vc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cp.ParseAnalysis(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestAnalyzePropagatesTransportError(t *testing.T) {
	cp := newTestProvider()
	cp.send = func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
		return nil, errors.New("connection refused")
	}

	_, err := cp.Analyze(context.Background(), "Product Manager", models.DefaultCriteria())
	assert.ErrorContains(t, err, "connection refused")
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := BuildAnalysisPrompt("Title: Venture Associate", models.DefaultCriteria())
	assert.Contains(t, prompt, "Title: Venture Associate")
	assert.Contains(t, prompt, "robotics")
	assert.Contains(t, prompt, "Role alignment with target roles: 40 points")
}

func TestIsHealthyWithoutKey(t *testing.T) {
	cfg := config.Default()
	cp := NewClaudeProvider(cfg)
	assert.Error(t, cp.IsHealthy(context.Background()))
}
