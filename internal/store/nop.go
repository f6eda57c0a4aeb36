package store

import (
	"context"
	"sync"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure NopStore implements model.LeadStore.
var _ model.LeadStore = (*NopStore)(nil)

// NopStore is the store used in dry-run mode. Leads live only in memory for
// the current run and vacancy lookups never hit, so every vacancy appears new
// on each scan.
type NopStore struct {
	mu     sync.Mutex
	nextID int64
	leads  map[int64]model.Lead
}

func NewNopStore() *NopStore { return &NopStore{leads: make(map[int64]model.Lead)} }

func (s *NopStore) Create(_ context.Context, nl model.NewLead) (model.Lead, bool, error) {
	status := nl.Status
	if status == "" {
		status = model.StatusNew
	}
	if !status.IsCreationStatus() {
		return model.Lead{}, false, &model.TransitionError{From: model.StatusNew, To: status}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	lead := model.Lead{
		ID:                s.nextID,
		VacancyID:         nl.VacancyID,
		Title:             nl.Title,
		Company:           nl.Company,
		URL:               nl.URL,
		RecruiterName:     nl.RecruiterName,
		RecruiterEmail:    nl.RecruiterEmail,
		GeneratedResponse: nl.GeneratedResponse,
		MeetingLink:       nl.MeetingLink,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.leads[lead.ID] = lead
	return lead, true, nil
}

func (s *NopStore) GetByID(_ context.Context, id int64) (model.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	return l, ok, nil
}

func (s *NopStore) GetByVacancyID(context.Context, string) (model.Lead, bool, error) {
	return model.Lead{}, false, nil
}

func (s *NopStore) UpdateStatus(_ context.Context, id int64, status model.Status, feedback *string) (model.Lead, model.Status, error) {
	if !status.Valid() {
		return model.Lead{}, "", model.ErrUnknownStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return model.Lead{}, "", model.ErrNotFound
	}
	from := l.Status
	if !from.CanTransition(status) {
		return model.Lead{}, "", &model.TransitionError{LeadID: id, From: from, To: status}
	}
	l.Status = status
	if feedback != nil {
		l.Feedback = *feedback
	}
	l.UpdatedAt = time.Now()
	s.leads[id] = l
	return l, from, nil
}

func (s *NopStore) List(context.Context, *model.Status) ([]model.Lead, error) { return nil, nil }
func (s *NopStore) Delete(context.Context, int64) error                       { return model.ErrNotFound }

func (s *NopStore) AnalysisAttempt(context.Context, string) (model.AnalysisAttempt, bool, error) {
	return model.AnalysisAttempt{}, false, nil
}

func (s *NopStore) RecordAnalysisFailure(_ context.Context, vacancyID string, cause error, _ time.Duration) (model.AnalysisAttempt, error) {
	return model.AnalysisAttempt{VacancyID: vacancyID, Attempts: 1}, nil
}

func (s *NopStore) ClearAnalysisFailure(context.Context, string) error { return nil }
