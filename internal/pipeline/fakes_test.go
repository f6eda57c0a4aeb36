package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Boundaries ---

type fakeSource struct {
	vacancies []model.Vacancy
	err       error
	calls     int
}

func (s *fakeSource) ScanNewVacancies(_ context.Context) ([]model.Vacancy, error) {
	s.calls++
	return s.vacancies, s.err
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analysis model.Analysis
	err      error
	panicOn  string // vacancy id that triggers a panic
	calls    int
	before   func() // runs before the analysis, outside the lock
}

func (a *fakeAnalyzer) Analyze(_ context.Context, v model.Vacancy) (model.Analysis, error) {
	if a.before != nil {
		a.before()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.panicOn != "" && v.ID == a.panicOn {
		panic("analyzer exploded")
	}
	return a.analysis, a.err
}

func (a *fakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeMeeting struct {
	link      string
	err       error
	calls     int
	gotName   string
	gotEmail  string
	gotTypeID string
	onIssue   func()
}

func (m *fakeMeeting) IssueSingleUseLink(_ context.Context, name, email, eventTypeID string) (string, error) {
	m.calls++
	if m.onIssue != nil {
		m.onIssue()
	}
	m.gotName, m.gotEmail, m.gotTypeID = name, email, eventTypeID
	return m.link, m.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	sent   bool
	err    error
	calls  int
	onSend func(vacancyID string)
}

func (d *fakeDispatcher) Send(_ context.Context, vacancyID, _ string) (bool, error) {
	d.mu.Lock()
	d.calls++
	hook := d.onSend
	d.mu.Unlock()
	if hook != nil {
		hook(vacancyID)
	}
	return d.sent, d.err
}

func (d *fakeDispatcher) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.LeadEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e model.LeadEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) Events() []model.LeadEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.LeadEvent(nil), n.events...)
}

type titleFilter struct{ reject string }

func (f titleFilter) Match(v model.Vacancy) bool { return v.Title != f.reject }

// --- Store ---

// memStore is an in-memory LeadStore enforcing the same rules as the SQLite
// store.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	leads      map[int64]model.Lead
	byVID      map[string]int64
	attempts   map[string]model.AnalysisAttempt
	now        func() time.Time
	lookups    int
	failNext   error // returned once by the next Create
	failUpdate error // returned once by the next UpdateStatus
}

func newMemStore() *memStore {
	return &memStore{
		leads:    make(map[int64]model.Lead),
		byVID:    make(map[string]int64),
		attempts: make(map[string]model.AnalysisAttempt),
		now:      time.Now,
	}
}

func (s *memStore) Create(_ context.Context, nl model.NewLead) (model.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return model.Lead{}, false, err
	}
	if id, ok := s.byVID[nl.VacancyID]; ok {
		return s.leads[id], false, nil
	}
	if nl.Status == "" {
		nl.Status = model.StatusNew
	}
	if !nl.Status.IsCreationStatus() {
		return model.Lead{}, false, model.ErrIllegalTransition
	}
	s.nextID++
	now := s.now()
	lead := model.Lead{
		ID: s.nextID, VacancyID: nl.VacancyID, Title: nl.Title, Company: nl.Company, URL: nl.URL,
		RecruiterName: nl.RecruiterName, RecruiterEmail: nl.RecruiterEmail,
		GeneratedResponse: nl.GeneratedResponse, MeetingLink: nl.MeetingLink,
		Status: nl.Status, CreatedAt: now, UpdatedAt: now,
	}
	s.leads[lead.ID] = lead
	s.byVID[lead.VacancyID] = lead.ID
	return lead, true, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (model.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	return l, ok, nil
}

func (s *memStore) GetByVacancyID(_ context.Context, vacancyID string) (model.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	id, ok := s.byVID[vacancyID]
	if !ok {
		return model.Lead{}, false, nil
	}
	return s.leads[id], true, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, status model.Status, feedback *string) (model.Lead, model.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate; err != nil {
		s.failUpdate = nil
		return model.Lead{}, "", err
	}
	if !status.Valid() {
		return model.Lead{}, "", model.ErrUnknownStatus
	}
	l, ok := s.leads[id]
	if !ok {
		return model.Lead{}, "", fmt.Errorf("lead %d: %w", id, model.ErrNotFound)
	}
	from := l.Status
	if !from.CanTransition(status) {
		return model.Lead{}, "", &model.TransitionError{LeadID: id, From: from, To: status}
	}
	l.Status = status
	if feedback != nil {
		l.Feedback = *feedback
	}
	l.UpdatedAt = s.now()
	s.leads[id] = l
	return l, from, nil
}

func (s *memStore) List(_ context.Context, status *model.Status) ([]model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Lead
	for id := int64(1); id <= s.nextID; id++ {
		if l, ok := s.leads[id]; ok && (status == nil || l.Status == *status) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.leads, id)
	delete(s.byVID, l.VacancyID)
	return nil
}

func (s *memStore) AnalysisAttempt(_ context.Context, vacancyID string) (model.AnalysisAttempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[vacancyID]
	return a, ok, nil
}

func (s *memStore) RecordAnalysisFailure(_ context.Context, vacancyID string, cause error, backoff time.Duration) (model.AnalysisAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.attempts[vacancyID]
	a.VacancyID = vacancyID
	a.Attempts++
	a.LastError = cause.Error()
	a.NextAttemptAt = s.now().Add(backoff)
	s.attempts[vacancyID] = a
	return a, nil
}

func (s *memStore) ClearAnalysisFailure(_ context.Context, vacancyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, vacancyID)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

var errBoom = errors.New("boom")
