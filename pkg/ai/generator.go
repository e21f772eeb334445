package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (OpenAI-compatible, Ollama, Gemini) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrNotConfigured is returned by the disabled generator.
var ErrNotConfigured = errors.New("text generation provider not configured")

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from provider")

// ProviderError describes a non-2xx answer from an upstream provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
}

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "openrouter", "openai-compat", "ollama", "gemini"
	// or "none".
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
	Timeout time.Duration
}

const (
	ProviderOpenRouter   = "openrouter"
	ProviderOpenAICompat = "openai-compat"
	ProviderOllama       = "ollama"
	ProviderGemini       = "gemini"
	ProviderNone         = "none"
)

// NewGenerator builds the TextGenerator selected by cfg.Provider.
func NewGenerator(cfg Config) (TextGenerator, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		client.Timeout = 60 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if strings.TrimSpace(baseURL) == "" {
			baseURL = DefaultOpenRouterBaseURL
		}
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("openrouter api key required")
		}
		gen := NewOpenAICompatGenerator(baseURL, cfg.APIKey, cfg.Model, client)
		gen.referer = strings.TrimSpace(cfg.Referer)
		gen.title = strings.TrimSpace(cfg.Title)
		gen.provider = ProviderOpenRouter
		return gen, nil
	case ProviderOpenAICompat:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("openai-compat base url required")
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, client), nil
	case ProviderOllama:
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model, client), nil
	case ProviderGemini:
		gen, err := NewGeminiGenerator(cfg.APIKey, cfg.Model, client)
		if err != nil {
			return nil, err
		}
		if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
			gen.baseURL = base
		}
		return gen, nil
	case "", ProviderNone:
		return DisabledGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// DisabledGenerator always fails with ErrNotConfigured.
type DisabledGenerator struct{}

// GenerateText implements TextGenerator.
func (DisabledGenerator) GenerateText(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

// maxResponseBytes caps how much of a provider body is decoded.
const maxResponseBytes = 1 << 20

func limitBody(r io.Reader) io.Reader {
	return io.LimitReader(r, maxResponseBytes)
}
