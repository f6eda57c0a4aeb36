package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure FeedAdapter implements model.VacancySource.
var _ model.VacancySource = (*FeedAdapter)(nil)

// feedVacancy is one entry of a platform feed.
type feedVacancy struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Company        string `json:"company"`
	Description    string `json:"description"`
	Requirements   string `json:"requirements"`
	URL            string `json:"url"`
	RecruiterName  string `json:"recruiter_name"`
	RecruiterEmail string `json:"recruiter_email"`
}

// feedEnvelope is the object form of a feed; a bare JSON array is accepted too.
type feedEnvelope struct {
	Vacancies []feedVacancy `json:"vacancies"`
}

// FeedAdapter reads vacancies from a platform's JSON feed (an export or a
// relay in front of the job board).
type FeedAdapter struct {
	platform string
	feedURL  string
	token    string
	client   *http.Client
	now      func() time.Time
}

// NewFeedAdapter creates an adapter for one platform feed. token, when set,
// is sent as a bearer token.
func NewFeedAdapter(platform, feedURL, token string, client *http.Client) *FeedAdapter {
	return &FeedAdapter{
		platform: platform,
		feedURL:  feedURL,
		token:    token,
		client:   client,
		now:      time.Now,
	}
}

// Platform returns the platform name this adapter reads.
func (a *FeedAdapter) Platform() string {
	return a.platform
}

// ScanNewVacancies fetches the feed and normalizes every entry into a
// model.Vacancy. Ids are namespaced by platform ("djinni_123") so they stay
// unique across feeds. Dedup against stored leads happens downstream.
func (a *FeedAdapter) ScanNewVacancies(ctx context.Context) ([]model.Vacancy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", a.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", a.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s feed: unexpected status %d", a.platform, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s feed: read body: %w", a.platform, err)
	}

	entries, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", a.platform, err)
	}

	discovered := a.now().UTC()
	vacancies := make([]model.Vacancy, 0, len(entries))
	for _, e := range entries {
		vacancies = append(vacancies, model.Vacancy{
			ID:             a.vacancyID(e.ID),
			Platform:       a.platform,
			Title:          strings.TrimSpace(e.Title),
			Company:        strings.TrimSpace(e.Company),
			Description:    normalizeText(e.Description),
			Requirements:   normalizeText(e.Requirements),
			URL:            strings.TrimSpace(e.URL),
			RecruiterName:  strings.TrimSpace(e.RecruiterName),
			RecruiterEmail: strings.TrimSpace(e.RecruiterEmail),
			DiscoveredAt:   discovered,
		})
	}
	return vacancies, nil
}

func (a *FeedAdapter) vacancyID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, a.platform+"_") {
		return raw
	}
	return a.platform + "_" + raw
}

func decodeFeed(body []byte) ([]feedVacancy, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []feedVacancy
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		return list, nil
	}

	var env feedEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return env.Vacancies, nil
}
