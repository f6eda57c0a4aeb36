package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure CalendlyIssuer implements model.MeetingIssuer.
var _ model.MeetingIssuer = (*CalendlyIssuer)(nil)

const calendlyBaseURL = "https://api.calendly.com"

// CalendlyIssuer creates single-use scheduling links through the Calendly
// scheduling_links API.
type CalendlyIssuer struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewCalendlyIssuer creates an issuer. An empty baseURL uses the public API.
func NewCalendlyIssuer(baseURL, token string, client *http.Client) *CalendlyIssuer {
	if baseURL == "" {
		baseURL = calendlyBaseURL
	}
	return &CalendlyIssuer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type schedulingLinkRequest struct {
	MaxEventCount int    `json:"max_event_count"`
	Owner         string `json:"owner"`
	OwnerType     string `json:"owner_type"`
}

type schedulingLinkResponse struct {
	Resource struct {
		BookingURL string `json:"booking_url"`
	} `json:"resource"`
}

// IssueSingleUseLink returns a booking URL valid for one event. Recruiter
// name and email, when known, are prefilled on the booking page.
func (c *CalendlyIssuer) IssueSingleUseLink(ctx context.Context, recruiterName, recruiterEmail, eventTypeID string) (string, error) {
	if eventTypeID == "" {
		return "", fmt.Errorf("calendly: event type id is required")
	}

	body, err := json.Marshal(schedulingLinkRequest{
		MaxEventCount: 1,
		Owner:         c.eventTypeURI(eventTypeID),
		OwnerType:     "EventType",
	})
	if err != nil {
		return "", fmt.Errorf("calendly: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scheduling_links", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("calendly: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendly: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("calendly scheduling link: %s", strings.TrimSpace(string(msg))),
		}
	}

	var out schedulingLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("calendly: decode response: %w", err)
	}
	if out.Resource.BookingURL == "" {
		return "", fmt.Errorf("calendly: response has no booking_url")
	}

	return withPrefill(out.Resource.BookingURL, recruiterName, recruiterEmail)
}

// eventTypeURI accepts either a bare event type uuid or a full URI.
func (c *CalendlyIssuer) eventTypeURI(id string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	return calendlyBaseURL + "/event_types/" + id
}

func withPrefill(link, name, email string) (string, error) {
	if name == "" && email == "" {
		return link, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse booking url: %w", err)
	}
	q := u.Query()
	if name != "" {
		q.Set("name", name)
	}
	if email != "" {
		q.Set("email", email)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
