package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// headline is the one-line summary used as Slack header and email subject.
// Vacancy fields come from third-party platforms, so line breaks are folded.
func headline(e model.LeadEvent) string {
	l := e.Lead
	title, company := oneLine(l.Title), oneLine(orNA(l.Company))
	switch e.Kind {
	case model.EventNewLead:
		return fmt.Sprintf("New lead: %s at %s", title, company)
	case model.EventDispatchFailed:
		return fmt.Sprintf("Outreach not sent: %s at %s", title, company)
	case model.EventStatusChanged:
		return fmt.Sprintf("%s: %s -> %s", title, e.PrevStatus, l.Status)
	default:
		return fmt.Sprintf("Lead update: %s", title)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func meetingLink(l model.Lead) string {
	if l.MeetingLink == nil {
		return "N/A"
	}
	return *l.MeetingLink
}

func recruiter(l model.Lead) string {
	switch {
	case l.RecruiterName != "" && l.RecruiterEmail != "":
		return fmt.Sprintf("%s (%s)", l.RecruiterName, l.RecruiterEmail)
	case l.RecruiterName != "":
		return l.RecruiterName
	default:
		return orNA(l.RecruiterEmail)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// SendTestMessage sends a dummy new-lead event to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	now := time.Now()
	link := "https://calendly.com/d/test-link"
	return n.Notify(ctx, model.LeadEvent{
		Kind: model.EventNewLead,
		Lead: model.Lead{
			ID:                0,
			VacancyID:         "test-001",
			Title:             "Test Notification",
			Company:           "TalentFlow",
			URL:               "https://djinni.co/jobs/",
			RecruiterName:     "Test Recruiter",
			RecruiterEmail:    "recruiter@example.com",
			GeneratedResponse: "Integration verified.",
			MeetingLink:       &link,
			Status:            model.StatusContacted,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	})
}
