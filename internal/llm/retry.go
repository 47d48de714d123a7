package llm

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

const maxBackoff = 10 * time.Second

type retrying struct {
	next      Generator
	attempts  int
	baseDelay time.Duration
}

// WithRetry retries retryable failures up to attempts total calls with exponential backoff.
func WithRetry(g Generator, attempts int, baseDelay time.Duration) Generator {
	if attempts <= 1 {
		return g
	}
	return &retrying{next: g, attempts: attempts, baseDelay: baseDelay}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			delay := backoff(r.baseDelay, attempt-1)
			slog.DebugContext(ctx, "Retrying generation", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", errors.Join(ctx.Err(), lastErr)
			}
		}

		text, err := r.next.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !Retryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func backoff(base time.Duration, retry int) time.Duration {
	d := base * time.Duration(1<<(retry-1))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// Retryable reports whether a generation failure is worth another attempt.
// Context cancellation and client errors other than 429 are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var status *StatusError
	if errors.As(err, &status) {
		return retryableStatus(status.Code)
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.StatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "unavailable")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
