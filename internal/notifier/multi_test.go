package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/FlowNice/job-application-agent/internal/model"
)

type recordingNotifier struct {
	events []model.LeadEvent
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, e model.LeadEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiNotifier_FansOutAndJoinsErrors(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("slack down")}
	ok := &recordingNotifier{}
	m := MultiNotifier{failing, ok}

	err := m.Notify(context.Background(), newLeadEvent())
	if err == nil || err.Error() != "slack down" {
		t.Errorf("err = %v, want slack down", err)
	}
	if len(failing.events) != 1 || len(ok.events) != 1 {
		t.Errorf("every notifier must be attempted: %d, %d", len(failing.events), len(ok.events))
	}
}

func TestMultiNotifier_Empty(t *testing.T) {
	if err := (MultiNotifier{}).Notify(context.Background(), newLeadEvent()); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestSendTestMessage(t *testing.T) {
	r := &recordingNotifier{}
	if err := SendTestMessage(context.Background(), r); err != nil {
		t.Fatalf("SendTestMessage: %v", err)
	}
	if len(r.events) != 1 || r.events[0].Kind != model.EventNewLead {
		t.Fatalf("events = %+v", r.events)
	}
	if r.events[0].Lead.MeetingLink == nil {
		t.Error("test message should carry a meeting link")
	}
}
