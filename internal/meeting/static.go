package meeting

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure StaticIssuer implements model.MeetingIssuer.
var _ model.MeetingIssuer = (*StaticIssuer)(nil)

// StaticIssuer builds links on a self-hosted booking page. Each link carries
// a fresh random token so it can be invalidated after one booking.
type StaticIssuer struct {
	baseURL string
	newID   func() uuid.UUID
}

// NewStaticIssuer creates an issuer for links under baseURL.
func NewStaticIssuer(baseURL string) *StaticIssuer {
	return &StaticIssuer{baseURL: strings.TrimRight(baseURL, "/"), newID: uuid.New}
}

// IssueSingleUseLink returns baseURL/<event type>/<token>.
func (s *StaticIssuer) IssueSingleUseLink(_ context.Context, recruiterName, recruiterEmail, eventTypeID string) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("static meeting link: base url is not configured")
	}
	link := s.baseURL
	if eventTypeID != "" {
		link += "/" + url.PathEscape(eventTypeID)
	}
	link += "/" + s.newID().String()
	return withPrefill(link, recruiterName, recruiterEmail)
}
