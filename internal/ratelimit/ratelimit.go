package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// KeyedLimiter keeps one token bucket per key (platform name, "outreach", ...).
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewKeyedLimiter creates a limiter allowing perSecond requests per key with
// the given burst. A burst below 1 is raised to 1.
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = lim
	return lim
}

// Wait blocks until a request for key is allowed.
// Returns an error if the context is cancelled while waiting.
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if err := l.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// RateLimitedSource is a decorator that enforces per-platform rate limiting
// before delegating to the wrapped VacancySource.
type RateLimitedSource struct {
	inner    model.VacancySource
	limiter  *KeyedLimiter
	platform string
}

// NewRateLimitedSource wraps a VacancySource. Sources targeting the same
// platform should share the same limiter instance.
func NewRateLimitedSource(inner model.VacancySource, limiter *KeyedLimiter, platform string) *RateLimitedSource {
	return &RateLimitedSource{inner: inner, limiter: limiter, platform: platform}
}

// ScanNewVacancies waits for the limiter, then delegates.
func (s *RateLimitedSource) ScanNewVacancies(ctx context.Context) ([]model.Vacancy, error) {
	if err := s.limiter.Wait(ctx, s.platform); err != nil {
		return nil, err
	}
	return s.inner.ScanNewVacancies(ctx)
}

// OutreachThrottle spaces out outreach messages so a burst of new vacancies
// does not flood the messaging platform. The orchestrator waits on it before
// the per-send timeout starts.
type OutreachThrottle struct {
	limiter *KeyedLimiter
}

// Ensure OutreachThrottle implements model.Throttle.
var _ model.Throttle = (*OutreachThrottle)(nil)

// NewOutreachThrottle allows perMinute sends per minute.
func NewOutreachThrottle(perMinute float64) *OutreachThrottle {
	return &OutreachThrottle{limiter: NewKeyedLimiter(perMinute/60, 1)}
}

// Wait blocks until the next send is allowed. With a deadline on ctx it fails
// at once when the deadline falls before the next slot.
func (t *OutreachThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx, "outreach")
}
