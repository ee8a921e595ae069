package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	// BaseURL of the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model used for generation (default: qwen2.5:7b)
	Model string

	// Timeout per request (default: 30s)
	Timeout time.Duration
}

// OllamaClient generates text with a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	breaker *CircuitBreaker
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates a client. breaker may be nil.
func NewOllamaClient(cfg OllamaConfig, breaker *CircuitBreaker) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:7b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(CircuitBreakerConfig{Name: "ollama"}, nil)
	}
	return &OllamaClient{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// Complete sends prompt to /api/generate and returns the response text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.breaker.Execute(ctx, func() (string, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return out, nil
}

func (c *OllamaClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false, Format: "json"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Response, nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}

var _ TextGenerator = (*OllamaClient)(nil)
