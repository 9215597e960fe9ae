package runtime

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/llm"
)

// ProviderFactory creates and caches one LLM provider per model.
type ProviderFactory struct {
	maxTokens int
	baseURL   string
	apiKey    func(provider string) string

	mu        sync.Mutex
	providers map[string]llm.Provider
}

// FactoryConfig configures provider construction. APIKey may be nil,
// in which case keys are read from <PROVIDER>_API_KEY environment
// variables.
type FactoryConfig struct {
	MaxTokens int
	BaseURL   string
	APIKey    func(provider string) string
}

// NewProviderFactory creates a provider factory.
func NewProviderFactory(cfg FactoryConfig) *ProviderFactory {
	apiKey := cfg.APIKey
	if apiKey == nil {
		apiKey = envAPIKey
	}
	return &ProviderFactory{
		maxTokens: cfg.MaxTokens,
		baseURL:   cfg.BaseURL,
		apiKey:    apiKey,
		providers: make(map[string]llm.Provider),
	}
}

// Get returns the provider for model, creating it on first use.
func (f *ProviderFactory) Get(model string) (llm.Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("model not configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[model]; ok {
		return p, nil
	}

	providerName := llm.InferProviderFromModel(model)
	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     model,
		APIKey:    f.apiKey(providerName),
		MaxTokens: f.maxTokens,
		BaseURL:   f.baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider for %q: %w", model, err)
	}

	f.providers[model] = p
	return p, nil
}

func envAPIKey(provider string) string {
	if provider == "" {
		return ""
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}
