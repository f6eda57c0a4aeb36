package model

import (
	"context"
	"time"
)

// Vacancy is a job posting as produced by discovery. It is consumed once by
// the pipeline and only the fields copied into a Lead are kept.
type Vacancy struct {
	ID             string `validate:"required,max=256"` // unique per platform
	Platform       string `validate:"required"`
	Title          string `validate:"required"`
	Company        string
	Description    string
	Requirements   string
	URL            string `validate:"required,url"`
	RecruiterName  string
	RecruiterEmail string    `validate:"omitempty,email"`
	DiscoveredAt   time.Time // our clock
}

// Text returns the vacancy text handed to the analyzer.
func (v Vacancy) Text() string {
	if v.Requirements == "" {
		return v.Description
	}
	if v.Description == "" {
		return v.Requirements
	}
	return v.Description + "\n\n" + v.Requirements
}

// Analysis is the structured extraction plus the generated outreach message.
type Analysis struct {
	KeyResponsibilities   []string
	TechnicalRequirements []string
	KPIs                  []string
	Seniority             string
	GeneratedResponse     string
	RecruiterName         string // optional, when the analyzer found one
	RecruiterEmail        string
}

// Usable reports whether the analysis carries a message worth sending.
func (a Analysis) Usable() bool {
	return a.GeneratedResponse != ""
}

// Lead is the durable record tracking one vacancy.
type Lead struct {
	ID                int64
	VacancyID         string
	Title             string
	Company           string
	URL               string
	RecruiterName     string
	RecruiterEmail    string
	GeneratedResponse string
	MeetingLink       *string // nil when issuance failed or was skipped
	Status            Status
	Feedback          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewLead holds the fields supplied when a lead is created.
type NewLead struct {
	VacancyID         string
	Title             string
	Company           string
	URL               string
	RecruiterName     string
	RecruiterEmail    string
	GeneratedResponse string
	MeetingLink       *string
	Status            Status // defaults to StatusNew
}

// AnalysisAttempt tracks failed analyses of a vacancy that has no lead yet.
type AnalysisAttempt struct {
	VacancyID     string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
}

// EventKind classifies notifications sent to the operator.
type EventKind string

const (
	EventNewLead        EventKind = "new_lead"
	EventDispatchFailed EventKind = "dispatch_failed"
	EventStatusChanged  EventKind = "status_changed"
)

// LeadEvent is the payload handed to a Notifier.
type LeadEvent struct {
	Kind       EventKind
	Lead       Lead
	PrevStatus Status // set for EventStatusChanged
}

// VacancySource discovers vacancies from one platform.
type VacancySource interface {
	ScanNewVacancies(ctx context.Context) ([]Vacancy, error)
}

// Analyzer turns vacancy text into an Analysis. A single atomic call.
type Analyzer interface {
	Analyze(ctx context.Context, v Vacancy) (Analysis, error)
}

// MeetingIssuer produces a single-use scheduling link.
type MeetingIssuer interface {
	IssueSingleUseLink(ctx context.Context, recruiterName, recruiterEmail, eventTypeID string) (string, error)
}

// Dispatcher delivers the generated message to the recruiter.
type Dispatcher interface {
	Send(ctx context.Context, vacancyID, message string) (bool, error)
}

// Notifier informs the operator. Best-effort: callers log errors and move on.
type Notifier interface {
	Notify(ctx context.Context, event LeadEvent) error
}

// Throttle spaces out outbound sends. Wait blocks until the next send may go.
type Throttle interface {
	Wait(ctx context.Context) error
}

// LeadStore persists leads and their status.
type LeadStore interface {
	Create(ctx context.Context, nl NewLead) (Lead, bool, error)
	GetByID(ctx context.Context, id int64) (Lead, bool, error)
	GetByVacancyID(ctx context.Context, vacancyID string) (Lead, bool, error)
	// UpdateStatus returns the updated lead and the status it moved from,
	// both read in the same transaction as the write.
	UpdateStatus(ctx context.Context, id int64, status Status, feedback *string) (Lead, Status, error)
	List(ctx context.Context, status *Status) ([]Lead, error)
	Delete(ctx context.Context, id int64) error

	AnalysisAttempt(ctx context.Context, vacancyID string) (AnalysisAttempt, bool, error)
	RecordAnalysisFailure(ctx context.Context, vacancyID string, cause error, backoff time.Duration) (AnalysisAttempt, error)
	ClearAnalysisFailure(ctx context.Context, vacancyID string) error
}

// VacancyFilter decides whether a vacancy matches the operator's criteria.
type VacancyFilter interface {
	Match(v Vacancy) bool
}
