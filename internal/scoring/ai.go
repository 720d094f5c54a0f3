package scoring

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"jobscout/internal/llm"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

const maxPromptDescription = 2000

// Analyzer is the reasoning capability the AI strategy needs; llm.Manager implements it
type Analyzer interface {
	Analyze(ctx context.Context, text string, criteria models.Criteria) (*llm.Analysis, error)
}

// AIScorer asks a reasoning provider for the verdict
type AIScorer struct {
	analyzer Analyzer
	validate *validator.Validate
}

// NewAIScorer creates an AI scorer
func NewAIScorer(analyzer Analyzer) *AIScorer {
	return &AIScorer{analyzer: analyzer, validate: validator.New()}
}

// Score returns an error for any provider failure or invalid verdict
func (s *AIScorer) Score(ctx context.Context, listing models.RawListing, company models.Company, criteria models.Criteria) (models.ScoreResult, error) {
	analysis, err := s.analyzer.Analyze(ctx, ListingText(listing, company), criteria)
	if err != nil {
		return models.ScoreResult{}, fmt.Errorf("ai analysis: %w", err)
	}
	if analysis == nil {
		return models.ScoreResult{}, fmt.Errorf("ai analysis: empty verdict")
	}

	result := models.ScoreResult{
		Value:          analysis.Score,
		RoleType:       models.RoleType(analysis.RoleType),
		Recommendation: Recommend(analysis.Score),
		Reasoning:      analysis.Reasoning,
		Pros:           analysis.Pros,
		Cons:           analysis.Cons,
		Strategy:       analysis.Strategy,
		ScoredBy:       "ai",
	}
	if err := s.validate.Struct(result); err != nil {
		return models.ScoreResult{}, fmt.Errorf("ai analysis: %w", err)
	}
	return result, nil
}

// ListingText renders a listing and its company for a reasoning provider
func ListingText(listing models.RawListing, company models.Company) string {
	var b strings.Builder

	if company.Name != "" {
		fmt.Fprintf(&b, "Company: %s", company.Name)
		var facts []string
		for _, f := range []string{company.Industry, company.FundingStage, company.Location} {
			if f != "" {
				facts = append(facts, f)
			}
		}
		if len(facts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(facts, ", "))
		}
		b.WriteString("\n")
	}

	location := listing.Location
	if location == "" {
		location = "Not specified"
	}
	description := listing.Description
	if description == "" {
		description = "No description available"
	}
	if r := []rune(description); len(r) > maxPromptDescription {
		description = string(r[:maxPromptDescription])
	}

	fmt.Fprintf(&b, "Title: %s\nLocation: %s\nURL: %s\nDescription:\n%s", listing.Title, location, listing.URL, description)
	return b.String()
}

// FallbackScorer tries the primary strategy and falls back to the secondary
// for any listing the primary fails on.
type FallbackScorer struct {
	Primary  Scorer
	Fallback Scorer

	logger    types.Logger
	fallbacks atomic.Int64
}

// NewFallbackScorer creates the chain
func NewFallbackScorer(primary, fallback Scorer, logger types.Logger) *FallbackScorer {
	return &FallbackScorer{
		Primary:  primary,
		Fallback: fallback,
		logger:   logger.WithField("component", "scoring"),
	}
}

// Score never returns the primary's error; the fallback's error, if any, is returned
func (f *FallbackScorer) Score(ctx context.Context, listing models.RawListing, company models.Company, criteria models.Criteria) (models.ScoreResult, error) {
	result, err := f.Primary.Score(ctx, listing, company, criteria)
	if err == nil {
		return result, nil
	}

	f.fallbacks.Add(1)
	f.logger.Warn("Primary scoring failed, using fallback", map[string]interface{}{
		"url":   listing.URL,
		"title": listing.Title,
		"error": err.Error(),
	})

	result, err = f.Fallback.Score(ctx, listing, company, criteria)
	if err != nil {
		return models.ScoreResult{}, err
	}
	result.Fallback = true
	return result, nil
}

// Fallbacks returns how many listings were scored by the fallback
func (f *FallbackScorer) Fallbacks() int64 {
	return f.fallbacks.Load()
}
