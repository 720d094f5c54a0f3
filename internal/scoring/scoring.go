// Package scoring rates listings against the search criteria. An AI strategy
// and a deterministic rule strategy share one interface; the fallback chain
// uses the rules whenever the AI call fails.
package scoring

import (
	"context"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

// Score thresholds
const (
	ApplyScore    = 80
	ConsiderScore = 60
)

// Scorer rates one listing
type Scorer interface {
	Score(ctx context.Context, listing models.RawListing, company models.Company, criteria models.Criteria) (models.ScoreResult, error)
}

// Recommend derives the tier from a score: apply at 80 and above, consider
// from 60, nothing below.
func Recommend(score int) models.Recommendation {
	switch {
	case score >= ApplyScore:
		return models.RecommendationApply
	case score >= ConsiderScore:
		return models.RecommendationConsider
	default:
		return models.RecommendationNone
	}
}

// Qualifies reports whether a result may be persisted at the default threshold
func Qualifies(result models.ScoreResult) bool {
	return QualifiesAt(result, config.MinPersistScore)
}

// QualifiesAt applies a configured threshold, which can only raise the default
func QualifiesAt(result models.ScoreResult, minScore int) bool {
	if minScore < config.MinPersistScore {
		minScore = config.MinPersistScore
	}
	return result.Value >= minScore
}

// New selects the scoring chain. Without a usable analyzer the rules are used
// for every listing.
func New(cfg *config.Config, analyzer Analyzer, logger types.Logger) Scorer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	rules := NewRuleScorer()

	if analyzer == nil || !cfg.AIEnabled() {
		logger.Info("AI scoring unavailable, using rule-based scoring", map[string]interface{}{
			"use_ai": cfg.Matching.UseAI,
		})
		return rules
	}
	return NewFallbackScorer(NewAIScorer(analyzer), rules, logger)
}
