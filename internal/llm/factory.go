package llm

import (
	"fmt"

	"jobscout/internal/config"
	"jobscout/internal/llm/providers"
)

// Factory creates Provider instances
type Factory struct {
	config *config.Config
}

// NewFactory creates a new factory instance
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		config: cfg,
	}
}

// CreateProvider creates a provider based on the configuration
func (f *Factory) CreateProvider() (Provider, error) {
	if f.config.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is not configured")
	}

	switch f.config.LLM.Provider {
	case "claude":
		return providers.NewClaudeProvider(f.config), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", f.config.LLM.Provider)
	}
}

// GetSupportedProviders returns a list of supported providers
func (f *Factory) GetSupportedProviders() []string {
	return []string{"claude"}
}
