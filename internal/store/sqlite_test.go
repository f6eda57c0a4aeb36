package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func sampleLead(vacancyID string) model.NewLead {
	return model.NewLead{
		VacancyID:         vacancyID,
		Title:             "Python Developer",
		Company:           "Tech Solutions Inc.",
		URL:               "https://djinni.co/jobs/" + vacancyID,
		RecruiterName:     "John Doe",
		RecruiterEmail:    "john.doe@example.com",
		GeneratedResponse: "Hello...",
		MeetingLink:       strPtr("https://calendly.com/d/abc"),
		Status:            model.StatusContacted,
	}
}

func mustCreate(t *testing.T, s *SQLiteStore, nl model.NewLead) model.Lead {
	t.Helper()
	lead, created, err := s.Create(context.Background(), nl)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created {
		t.Fatalf("Create(%s): expected created=true", nl.VacancyID)
	}
	return lead
}

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := mustCreate(t, s, sampleLead("djinni_123"))
	if lead.ID == 0 {
		t.Fatal("expected surrogate id to be assigned")
	}
	if lead.Status != model.StatusContacted {
		t.Errorf("Status = %q, want Contacted", lead.Status)
	}
	if lead.MeetingLink == nil || *lead.MeetingLink != "https://calendly.com/d/abc" {
		t.Errorf("MeetingLink = %v", lead.MeetingLink)
	}
	if lead.CreatedAt.IsZero() || !lead.CreatedAt.Equal(lead.UpdatedAt) {
		t.Errorf("timestamps: created=%v updated=%v", lead.CreatedAt, lead.UpdatedAt)
	}

	byID, found, err := s.GetByID(ctx, lead.ID)
	if err != nil || !found {
		t.Fatalf("GetByID: found=%v err=%v", found, err)
	}
	if byID.VacancyID != "djinni_123" || byID.RecruiterEmail != "john.doe@example.com" {
		t.Errorf("GetByID = %+v", byID)
	}

	byVacancy, found, err := s.GetByVacancyID(ctx, "djinni_123")
	if err != nil || !found {
		t.Fatalf("GetByVacancyID: found=%v err=%v", found, err)
	}
	if byVacancy.ID != lead.ID {
		t.Errorf("GetByVacancyID id = %d, want %d", byVacancy.ID, lead.ID)
	}
}

func TestCreate_DefaultsToNew(t *testing.T) {
	s := newTestStore(t)
	nl := sampleLead("v1")
	nl.Status = ""
	nl.MeetingLink = nil

	lead := mustCreate(t, s, nl)
	if lead.Status != model.StatusNew {
		t.Errorf("Status = %q, want New", lead.Status)
	}
	if lead.MeetingLink != nil {
		t.Errorf("MeetingLink = %q, want nil", *lead.MeetingLink)
	}
}

func TestCreate_RejectsNonCreationStatus(t *testing.T) {
	s := newTestStore(t)
	nl := sampleLead("v1")
	nl.Status = model.StatusHired

	if _, _, err := s.Create(context.Background(), nl); err == nil {
		t.Fatal("expected error creating a lead directly in Hired")
	}
}

func TestCreate_DuplicateReturnsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := mustCreate(t, s, sampleLead("djinni_123"))

	dup := sampleLead("djinni_123")
	dup.Title = "Something Else"
	dup.Status = model.StatusAnalysisComplete
	got, created, err := s.Create(ctx, dup)
	if err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	if created {
		t.Error("expected created=false for duplicate vacancy_id")
	}
	if got.ID != first.ID || got.Title != "Python Developer" || got.Status != model.StatusContacted {
		t.Errorf("duplicate Create should return the original row, got %+v", got)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestCreate_ConcurrentSameVacancy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lead, ok, err := s.Create(ctx, sampleLead("race"))
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[lead.ID] = true
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if len(ids) != 1 {
		t.Errorf("workers saw %d distinct ids, want 1", len(ids))
	}
}

func TestGet_MissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, found, err := s.GetByID(ctx, 999); err != nil || found {
		t.Errorf("GetByID(999) found=%v err=%v", found, err)
	}
	if _, found, err := s.GetByVacancyID(ctx, "nope"); err != nil || found {
		t.Errorf("GetByVacancyID(nope) found=%v err=%v", found, err)
	}
}

func TestUpdateStatus_LegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lead := mustCreate(t, s, sampleLead("v1"))

	later := lead.UpdatedAt.Add(time.Minute)
	s.now = func() time.Time { return later }

	updated, prev, err := s.UpdateStatus(ctx, lead.ID, model.StatusMeetingScheduled, strPtr("recruiter keen"))
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if prev != model.StatusContacted {
		t.Errorf("prev = %q, want Contacted", prev)
	}
	if updated.Status != model.StatusMeetingScheduled {
		t.Errorf("Status = %q", updated.Status)
	}
	if updated.Feedback != "recruiter keen" {
		t.Errorf("Feedback = %q", updated.Feedback)
	}
	if !updated.UpdatedAt.Equal(later.UTC()) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, later.UTC())
	}
	if !updated.CreatedAt.Equal(lead.CreatedAt) {
		t.Error("CreatedAt must not change on update")
	}

	// nil feedback keeps the previous annotation.
	hired, prev, err := s.UpdateStatus(ctx, lead.ID, model.StatusHired, nil)
	if err != nil {
		t.Fatalf("UpdateStatus Hired: %v", err)
	}
	if prev != model.StatusMeetingScheduled {
		t.Errorf("prev = %q, want Meeting Scheduled", prev)
	}
	if hired.Feedback != "recruiter keen" {
		t.Errorf("Feedback = %q, want it preserved", hired.Feedback)
	}
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lead := mustCreate(t, s, sampleLead("v1"))

	_, _, err := s.UpdateStatus(ctx, lead.ID, model.StatusHired, nil)
	if !errors.Is(err, model.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	var te *model.TransitionError
	if !errors.As(err, &te) || te.From != model.StatusContacted || te.To != model.StatusHired {
		t.Errorf("TransitionError = %+v", te)
	}

	got, _, _ := s.GetByID(ctx, lead.ID)
	if got.Status != model.StatusContacted {
		t.Errorf("status changed after rejected transition: %q", got.Status)
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	s := newTestStore(t)
	lead := mustCreate(t, s, sampleLead("v1"))

	_, _, err := s.UpdateStatus(context.Background(), lead.ID, model.Status("Ghosted"), nil)
	if !errors.Is(err, model.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.UpdateStatus(context.Background(), 42, model.StatusContacted, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_FilterByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, s, sampleLead(fmt.Sprintf("c%d", i)))
	}
	partial := sampleLead("p1")
	partial.Status = model.StatusAnalysisComplete
	mustCreate(t, s, partial)

	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List(nil) = %d leads, want 4", len(all))
	}

	st := model.StatusAnalysisComplete
	filtered, err := s.List(ctx, &st)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].VacancyID != "p1" {
		t.Errorf("List(Analysis Complete) = %+v", filtered)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lead := mustCreate(t, s, sampleLead("v1"))

	if err := s.Delete(ctx, lead.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.GetByID(ctx, lead.ID); found {
		t.Error("lead should be gone after Delete")
	}
	if err := s.Delete(ctx, lead.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if _, found, err := s.AnalysisAttempt(ctx, "v1"); err != nil || found {
		t.Fatalf("AnalysisAttempt before failures: found=%v err=%v", found, err)
	}

	first, err := s.RecordAnalysisFailure(ctx, "v1", errors.New("llm timeout"), time.Minute)
	if err != nil {
		t.Fatalf("RecordAnalysisFailure: %v", err)
	}
	if first.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", first.Attempts)
	}

	second, err := s.RecordAnalysisFailure(ctx, "v1", errors.New("empty response"), 2*time.Minute)
	if err != nil {
		t.Fatalf("RecordAnalysisFailure: %v", err)
	}
	if second.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", second.Attempts)
	}

	got, found, err := s.AnalysisAttempt(ctx, "v1")
	if err != nil || !found {
		t.Fatalf("AnalysisAttempt: found=%v err=%v", found, err)
	}
	if got.LastError != "empty response" {
		t.Errorf("LastError = %q", got.LastError)
	}
	if !got.NextAttemptAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("NextAttemptAt = %v", got.NextAttemptAt)
	}

	if err := s.ClearAnalysisFailure(ctx, "v1"); err != nil {
		t.Fatalf("ClearAnalysisFailure: %v", err)
	}
	if _, found, _ := s.AnalysisAttempt(ctx, "v1"); found {
		t.Error("attempt record should be cleared")
	}
}
