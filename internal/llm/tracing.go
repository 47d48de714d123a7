package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type traced struct {
	next     Generator
	tracer   trace.Tracer
	provider string
	model    string
}

// WithTracing records one span per generation call.
func WithTracing(g Generator, provider, model string) Generator {
	return &traced{
		next:     g,
		tracer:   otel.Tracer("github.com/ashureev/pitch-tank/internal/llm"),
		provider: provider,
		model:    model,
	}
}

func (t *traced) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", t.provider),
		attribute.String("llm.model", t.model),
		attribute.Int("llm.max_tokens", req.MaxTokens),
		attribute.Float64("llm.temperature", req.Temperature),
		attribute.Int("llm.prompt_chars", len(req.User)),
	))
	defer span.End()

	text, err := t.next.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(text)))
	return text, nil
}
