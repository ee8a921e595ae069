package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // default: gpt-4o-mini
	BaseURL string        // default: the go-openai default (https://api.openai.com/v1)
	Timeout time.Duration // default: 60s
}

// OpenAIClient generates text with the OpenAI chat completions API.
type OpenAIClient struct {
	model   string
	timeout time.Duration
	client  *openai.Client
	breaker *CircuitBreaker
}

// NewOpenAIClient creates a client. breaker may be nil.
func NewOpenAIClient(cfg OpenAIConfig, breaker *CircuitBreaker) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(CircuitBreakerConfig{Name: "openai"}, nil)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  openai.NewClientWithConfig(config),
		breaker: breaker,
	}
}

// Complete sends a single-turn chat completion and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.breaker.Execute(ctx, func() (string, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

var _ TextGenerator = (*OpenAIClient)(nil)
