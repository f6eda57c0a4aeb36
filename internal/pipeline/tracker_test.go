package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

func seedLead(t *testing.T, s *memStore, status model.Status) model.Lead {
	t.Helper()
	lead, _, err := s.Create(context.Background(), model.NewLead{
		VacancyID: "djinni_123", Title: "Python Developer", URL: "https://djinni.co/jobs/123", Status: status,
	})
	if err != nil {
		t.Fatalf("seeding lead: %v", err)
	}
	return lead
}

func TestTracker_LegalTransitionNotifies(t *testing.T) {
	s := newMemStore()
	lead := seedLead(t, s, model.StatusContacted)
	n := &recordingNotifier{}
	tr := NewTracker(s, n, time.Second, discardLogger())

	feedback := "call booked for Tuesday"
	got, err := tr.Transition(context.Background(), lead.ID, model.StatusMeetingScheduled, &feedback)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != model.StatusMeetingScheduled || got.Feedback != feedback {
		t.Errorf("lead = %+v", got)
	}

	events := n.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Kind != model.EventStatusChanged || e.PrevStatus != model.StatusContacted || e.Lead.Status != model.StatusMeetingScheduled {
		t.Errorf("event = %+v", e)
	}
}

func TestTracker_IllegalTransitionLeavesLeadUnchanged(t *testing.T) {
	s := newMemStore()
	lead := seedLead(t, s, model.StatusContacted)
	n := &recordingNotifier{}
	tr := NewTracker(s, n, time.Second, discardLogger())

	_, err := tr.Transition(context.Background(), lead.ID, model.StatusHired, nil)
	var te *model.TransitionError
	if !errors.As(err, &te) || !errors.Is(err, model.ErrIllegalTransition) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
	if te.From != model.StatusContacted || te.To != model.StatusHired {
		t.Errorf("TransitionError = %+v", te)
	}

	after, _, _ := s.GetByID(context.Background(), lead.ID)
	if after.Status != model.StatusContacted {
		t.Errorf("status = %q, want unchanged", after.Status)
	}
	if len(n.Events()) != 0 {
		t.Error("illegal transition must not notify")
	}
}

func TestTracker_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []model.Status{model.StatusRejected, model.StatusHired} {
		s := newMemStore()
		lead := seedLead(t, s, model.StatusContacted)
		lead.Status = terminal
		s.leads[lead.ID] = lead
		tr := NewTracker(s, nil, 0, discardLogger())

		for _, next := range model.AllStatuses {
			if _, err := tr.Transition(context.Background(), lead.ID, next, nil); !errors.Is(err, model.ErrIllegalTransition) {
				t.Errorf("%s -> %s: err = %v, want illegal transition", terminal, next, err)
			}
		}
	}
}

func TestTracker_NotFound(t *testing.T) {
	tr := NewTracker(newMemStore(), &recordingNotifier{}, time.Second, discardLogger())

	_, err := tr.Transition(context.Background(), 42, model.StatusRejected, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTracker_UnknownStatus(t *testing.T) {
	s := newMemStore()
	lead := seedLead(t, s, model.StatusContacted)
	tr := NewTracker(s, nil, 0, discardLogger())

	_, err := tr.Transition(context.Background(), lead.ID, model.Status("Ghosted"), nil)
	if !errors.Is(err, model.ErrUnknownStatus) {
		t.Fatalf("err = %v, want ErrUnknownStatus", err)
	}
}

func TestTracker_NotifierFailureIsNotReturned(t *testing.T) {
	s := newMemStore()
	lead := seedLead(t, s, model.StatusAnalysisComplete)
	tr := NewTracker(s, &recordingNotifier{err: errBoom}, time.Second, discardLogger())

	got, err := tr.Transition(context.Background(), lead.ID, model.StatusContacted, nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != model.StatusContacted {
		t.Errorf("status = %q", got.Status)
	}
}

// staleReadStore answers GetByID with an outdated snapshot.
type staleReadStore struct {
	*memStore
	stale model.Lead
}

func (s staleReadStore) GetByID(context.Context, int64) (model.Lead, bool, error) {
	return s.stale, true, nil
}

func TestTracker_PrevStatusComesFromTheUpdate(t *testing.T) {
	s := newMemStore()
	lead := seedLead(t, s, model.StatusMeetingScheduled)
	stale := lead
	stale.Status = model.StatusContacted
	n := &recordingNotifier{}
	tr := NewTracker(staleReadStore{memStore: s, stale: stale}, n, time.Second, discardLogger())

	if _, err := tr.Transition(context.Background(), lead.ID, model.StatusHired, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	events := n.Events()
	if len(events) != 1 || events[0].PrevStatus != model.StatusMeetingScheduled {
		t.Fatalf("events = %+v, want PrevStatus Meeting Scheduled", events)
	}
}

func TestTracker_ConcurrentTransitionsChainPrevStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.db")
	db := openSQLiteStore(t, path)
	// A second handle plays the board while the first plays the API.
	other := openSQLiteStore(t, path)
	ctx := context.Background()
	lead, _, err := db.Create(ctx, model.NewLead{
		VacancyID: "djinni_123", Title: "Python Developer", URL: "https://djinni.co/jobs/123", Status: model.StatusContacted,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n := &recordingNotifier{}
	trackers := []*Tracker{
		NewTracker(db, n, time.Second, discardLogger()),
		NewTracker(other, n, time.Second, discardLogger()),
	}
	targets := []model.Status{model.StatusMeetingScheduled, model.StatusRejected}

	var wg sync.WaitGroup
	for i := range trackers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trackers[i].Transition(ctx, lead.ID, targets[i], nil)
		}()
	}
	wg.Wait()

	// Either Meeting Scheduled then Rejected, or Rejected alone (Rejected is terminal).
	events := n.Events()
	switch len(events) {
	case 1:
		if events[0].PrevStatus != model.StatusContacted || events[0].Lead.Status != model.StatusRejected {
			t.Errorf("event = %s -> %s", events[0].PrevStatus, events[0].Lead.Status)
		}
	case 2:
		first, second := events[0], events[1]
		if first.Lead.Status != model.StatusMeetingScheduled {
			first, second = second, first
		}
		if first.PrevStatus != model.StatusContacted || second.PrevStatus != first.Lead.Status {
			t.Errorf("events %s -> %s and %s -> %s do not chain",
				first.PrevStatus, first.Lead.Status, second.PrevStatus, second.Lead.Status)
		}
	default:
		t.Fatalf("events = %d, want 1 or 2", len(events))
	}
}
