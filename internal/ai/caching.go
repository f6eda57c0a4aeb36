package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/FlowNice/job-application-agent/internal/cache"
	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure CachingAnalyzer implements model.Analyzer.
var _ model.Analyzer = (*CachingAnalyzer)(nil)

// CachingAnalyzer memoizes analyses by vacancy fingerprint so a vacancy that
// failed later in the pipeline is not re-sent to the LLM within ttl.
// Concurrent calls for the same fingerprint share one LLM call.
type CachingAnalyzer struct {
	inner model.Analyzer
	cache *cache.TTLCache
	ttl   time.Duration
}

// NewCachingAnalyzer wraps inner with c.
func NewCachingAnalyzer(inner model.Analyzer, c *cache.TTLCache, ttl time.Duration) *CachingAnalyzer {
	return &CachingAnalyzer{inner: inner, cache: c, ttl: ttl}
}

// Analyze returns the cached analysis for v or delegates to the inner analyzer.
// Unusable analyses are returned but not cached.
func (c *CachingAnalyzer) Analyze(ctx context.Context, v model.Vacancy) (model.Analysis, error) {
	value, err := c.cache.GetOrLoad(ctx, Fingerprint(v), c.ttl, func(ctx context.Context) (any, error) {
		a, err := c.inner.Analyze(ctx, v)
		if err != nil {
			return nil, err
		}
		if !a.Usable() {
			return nil, unusableError{analysis: a}
		}
		return a, nil
	})
	if err != nil {
		var u unusableError
		if errors.As(err, &u) {
			return u.analysis, nil
		}
		return model.Analysis{}, err
	}
	return value.(model.Analysis), nil
}

// unusableError smuggles an unusable analysis past GetOrLoad without caching it.
type unusableError struct {
	analysis model.Analysis
}

func (unusableError) Error() string { return "analysis has no generated response" }

// Fingerprint returns the cache key for a vacancy: a SHA-256 over platform,
// vacancy id and text.
func Fingerprint(v model.Vacancy) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", v.Platform, v.ID, v.Title, v.Text())
	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}
