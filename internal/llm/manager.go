package llm

import (
	"context"
	"fmt"
	"sync"

	"jobscout/internal/config"
	"jobscout/internal/llm/processors"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// Manager owns the configured provider and its health state
type Manager struct {
	config   *config.Config
	factory  *Factory
	provider Provider
	cleaner  *processors.HTMLCleaner
	logger   types.Logger
	mu       sync.RWMutex
	healthy  bool
}

// NewManager creates a new manager instance
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:  cfg,
		factory: NewFactory(cfg),
		cleaner: processors.NewHTMLCleaner(),
		logger:  logging.GetGlobalLogger().WithField("component", "llm"),
	}
}

// NewManagerWithProvider wraps an existing provider, skipping the factory
func NewManagerWithProvider(cfg *config.Config, provider Provider) *Manager {
	m := NewManager(cfg)
	m.provider = provider
	m.healthy = provider != nil
	return m
}

// Start creates the provider and checks its health. An unhealthy provider is
// not an error: Analyze fails and callers fall back to rule scoring.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting LLM manager", map[string]interface{}{
		"provider": m.config.LLM.Provider,
	})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	m.provider = provider

	ctx, cancel := context.WithTimeout(ctx, m.config.LLM.Timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		m.logger.Warn("LLM provider health check failed - AI scoring disabled", map[string]interface{}{
			"error": err.Error(),
		})
		m.healthy = false
	} else {
		m.healthy = true
		m.logger.Info("LLM manager started successfully", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
		})
	}

	return nil
}

// Stop shuts down the manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping LLM manager")
	m.provider = nil
	m.healthy = false
	return nil
}

// Analyze cleans the posting text, trims it to the token budget and asks the provider
func (m *Manager) Analyze(ctx context.Context, text string, criteria models.Criteria) (*Analysis, error) {
	m.mu.RLock()
	provider := m.provider
	healthy := m.healthy
	m.mu.RUnlock()

	if provider == nil {
		return nil, fmt.Errorf("LLM manager not started or provider not available")
	}
	if !healthy {
		return nil, fmt.Errorf("LLM provider is not available - check API key configuration (set LLM_API_KEY environment variable)")
	}

	if m.config.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.LLM.Timeout)
		defer cancel()
	}

	cleaned := m.cleaner.Truncate(m.cleaner.CleanText(text), m.config.LLM.MaxTokens*3)
	analysis, err := provider.Analyze(ctx, cleaned, criteria)
	if err != nil {
		return nil, utils.NewLLMError(provider.GetProviderName(), err)
	}
	return analysis, nil
}

// IsHealthy reports whether the manager can serve Analyze calls
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
