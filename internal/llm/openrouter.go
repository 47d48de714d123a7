package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const openRouterURL = "https://openrouter.ai/api/v1"

// OpenRouter talks to any OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	client *resty.Client
	model  string
}

// NewOpenRouter returns an OpenRouter-backed Generator. baseURL may be empty.
func NewOpenRouter(apiKey, model, baseURL string) *OpenRouter {
	if baseURL == "" {
		baseURL = openRouterURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)
	return &OpenRouter{client: client, model: model}
}

// Generate implements Generator.
func (o *OpenRouter) Generate(ctx context.Context, req Request) (string, error) {
	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{Provider: "openrouter", Code: resp.StatusCode(), Body: resp.String()}
	}

	if msg := gjson.Get(resp.String(), "error.message"); msg.Exists() {
		return "", fmt.Errorf("openrouter: %s", msg.String())
	}
	return cleanText(gjson.Get(resp.String(), "choices.0.message.content").String())
}
