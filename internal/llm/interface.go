package llm

import (
	"context"

	"jobscout/internal/llm/providers"
	"jobscout/pkg/models"
)

// Provider is a reasoning service that judges how well a posting fits the criteria
type Provider interface {
	// Analyze sends the listing text and criteria and returns the parsed verdict
	Analyze(ctx context.Context, text string, criteria models.Criteria) (*Analysis, error)

	// IsHealthy checks if the provider is configured and reachable
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the provider
	GetProviderName() string
}

// Analysis is the structured verdict a provider must return
type Analysis = providers.Analysis
