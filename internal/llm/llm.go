// Package llm provides text generation backends behind one interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/pitch-tank/internal/config"
)

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is a single-shot generation call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError carries the HTTP status of a failed backend call.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, body)
}

// New builds the configured backend, wrapped with retries and tracing.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case config.ProviderAnthropic:
		g = NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case config.ProviderGemini:
		g, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderOpenRouter:
		g = NewOpenRouter(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	g = WithTracing(g, cfg.Provider, cfg.Model)
	if cfg.MaxRetries > 0 {
		g = WithRetry(g, cfg.MaxRetries+1, 500*time.Millisecond)
	}
	return g, nil
}

func cleanText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
