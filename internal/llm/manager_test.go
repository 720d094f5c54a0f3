package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/config"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

type fakeProvider struct {
	lastText string
	err      error
}

func (f *fakeProvider) Analyze(_ context.Context, text string, _ models.Criteria) (*Analysis, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return &Analysis{Score: 90, RoleType: "pm", Reasoning: "fits"}, nil
}

func (f *fakeProvider) IsHealthy(context.Context) error { return f.err }
func (f *fakeProvider) GetProviderName() string         { return "fake" }

func TestManagerCleansText(t *testing.T) {
	cfg := config.Default()
	fake := &fakeProvider{}
	m := NewManagerWithProvider(cfg, fake)

	res, err := m.Analyze(context.Background(), "<div><p>Product   Manager</p><script>x()</script></div>", models.DefaultCriteria())
	require.NoError(t, err)
	assert.Equal(t, 90, res.Score)
	assert.Equal(t, "Product Manager", fake.lastText)
}

func TestManagerTruncatesToBudget(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.MaxTokens = 10
	fake := &fakeProvider{}
	m := NewManagerWithProvider(cfg, fake)

	_, err := m.Analyze(context.Background(), strings.Repeat("chip ", 500), models.Criteria{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(fake.lastText), 10*3*4+3)
}

func TestManagerUnhealthy(t *testing.T) {
	cfg := config.Default()
	m := NewManager(cfg)
	_, err := m.Analyze(context.Background(), "text", models.Criteria{})
	assert.Error(t, err)
	assert.Equal(t, "none", m.GetProviderName())

	fake := &fakeProvider{}
	m = NewManagerWithProvider(cfg, fake)
	fake.err = errors.New("down")
	assert.Error(t, m.CheckHealth(context.Background()))
	assert.False(t, m.IsHealthy())
}

func TestManagerWrapsProviderFailure(t *testing.T) {
	fake := &fakeProvider{}
	m := NewManagerWithProvider(config.Default(), fake)
	require.True(t, m.IsHealthy())

	fake.err = errors.New("overloaded")
	_, err := m.Analyze(context.Background(), "text", models.Criteria{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.err)
	assert.True(t, utils.IsKind(err, utils.KindNetwork))
}

func TestFactoryRequiresKey(t *testing.T) {
	cfg := config.Default()
	_, err := NewFactory(cfg).CreateProvider()
	assert.Error(t, err)

	cfg.LLM.APIKey = "sk-test"
	p, err := NewFactory(cfg).CreateProvider()
	require.NoError(t, err)
	assert.Equal(t, "claude", p.GetProviderName())

	cfg.LLM.Provider = "other"
	_, err = NewFactory(cfg).CreateProvider()
	assert.Error(t, err)
}
