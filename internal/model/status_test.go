package model

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	for _, st := range AllStatuses {
		got, err := ParseStatus(string(st))
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %q", st, got)
		}
	}

	_, err := ParseStatus("Ghosted")
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusContacted, true},
		{StatusNew, StatusAnalysisComplete, true},
		{StatusNew, StatusHired, false},
		{StatusAnalysisComplete, StatusContacted, true},
		{StatusAnalysisComplete, StatusMeetingScheduled, false},
		{StatusContacted, StatusMeetingScheduled, true},
		{StatusContacted, StatusRejected, true},
		{StatusContacted, StatusHired, false},
		{StatusMeetingScheduled, StatusHired, true},
		{StatusMeetingScheduled, StatusRejected, true},
		{StatusRejected, StatusContacted, false},
		{StatusHired, StatusRejected, false},
		{StatusContacted, StatusContacted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%q -> %q = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !StatusHired.Terminal() || !StatusRejected.Terminal() {
		t.Error("Hired and Rejected should be terminal")
	}
	if StatusContacted.Terminal() {
		t.Error("Contacted should not be terminal")
	}
}

func TestTransitionErrorUnwraps(t *testing.T) {
	err := error(&TransitionError{LeadID: 7, From: StatusHired, To: StatusNew})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("TransitionError should unwrap to ErrIllegalTransition: %v", err)
	}
}

func TestVacancyText(t *testing.T) {
	v := Vacancy{Description: "build things", Requirements: "Go"}
	if got := v.Text(); got != "build things\n\nGo" {
		t.Errorf("Text() = %q", got)
	}
	if got := (Vacancy{Requirements: "Go"}).Text(); got != "Go" {
		t.Errorf("Text() = %q", got)
	}
}
