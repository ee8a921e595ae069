package extraction

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Providers accepted by New.
const (
	ProviderNone   = "none"
	ProviderHugot  = "hugot"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and configures the extraction backend.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	ModelDir string

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// New builds the configured Extractor. Remote backends share one circuit
// breaker per extractor.
func New(cfg Config, log *zap.Logger) (Extractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	breaker := func(name string) *CircuitBreaker {
		return NewCircuitBreaker(CircuitBreakerConfig{
			Name:        name,
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		}, log)
	}

	switch cfg.Provider {
	case ProviderNone, "":
		return Nop{}, nil
	case ProviderHugot:
		return NewHugotExtractor(HugotConfig{Model: cfg.Model, ModelDir: cfg.ModelDir})
	case ProviderOllama:
		gen := NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: cfg.Timeout}, breaker("ollama"))
		return NewLLMExtractor(gen, log), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("extraction: openai provider requires an API key")
		}
		gen := NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, breaker("openai"))
		return NewLLMExtractor(gen, log), nil
	default:
		return nil, fmt.Errorf("extraction: unsupported provider %q", cfg.Provider)
	}
}
