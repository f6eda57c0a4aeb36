package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Policy controls how many times and how slowly a call is retried.
// MaxRetries is the number of additional attempts after the first failure.
// BaseDelay is the delay before the first retry, doubled on each subsequent retry.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy is two retries starting at five seconds.
var DefaultPolicy = Policy{MaxRetries: 2, BaseDelay: 5 * time.Second}

// completer matches ai.LLMProvider without importing it.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetrySource is a decorator that retries transient discovery failures with
// exponential backoff and jitter.
type RetrySource struct {
	inner  model.VacancySource
	name   string
	policy Policy
	logger *slog.Logger
}

// NewRetrySource wraps a VacancySource with retry logic.
func NewRetrySource(inner model.VacancySource, name string, policy Policy, logger *slog.Logger) *RetrySource {
	return &RetrySource{inner: inner, name: name, policy: policy, logger: logger}
}

// ScanNewVacancies attempts discovery, retrying on transient errors.
func (s *RetrySource) ScanNewVacancies(ctx context.Context) ([]model.Vacancy, error) {
	return do(ctx, s.policy, s.logger.With("platform", s.name, "boundary", "discovery"), s.inner.ScanNewVacancies)
}

// RetryProvider retries transient LLM provider failures. Completion is
// idempotent from the pipeline's point of view, so retrying is safe.
// Outreach is never wrapped this way.
type RetryProvider struct {
	inner  completer
	policy Policy
	logger *slog.Logger
}

// NewRetryProvider wraps an LLM provider with retry logic.
func NewRetryProvider(inner completer, policy Policy, logger *slog.Logger) *RetryProvider {
	return &RetryProvider{inner: inner, policy: policy, logger: logger}
}

// Complete calls the wrapped provider, retrying on transient errors.
func (p *RetryProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return do(ctx, p.policy, p.logger.With("boundary", "analyzer"), func(ctx context.Context) (string, error) {
		return p.inner.Complete(ctx, prompt)
	})
}

func do[T any](ctx context.Context, policy Policy, logger *slog.Logger, call func(context.Context) (T, error)) (T, error) {
	var zero T

	result, err := call(ctx)
	if err == nil {
		return result, nil
	}
	if !isRetryable(err) {
		return zero, err
	}

	lastErr := err
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		delay := backoffDelay(policy.BaseDelay, attempt, lastErr)

		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", policy.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		result, err = call(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: base * 2^(attempt-1)
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	// Non-HTTP errors (network, DNS, malformed replies) are retryable.
	return true
}

// retryableStatus reports 429 and 5xx as transient; other 4xx are final.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
