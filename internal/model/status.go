package model

import "fmt"

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew              Status = "New"
	StatusContacted        Status = "Contacted"
	StatusAnalysisComplete Status = "Analysis Complete"
	StatusMeetingScheduled Status = "Meeting Scheduled"
	StatusRejected         Status = "Rejected"
	StatusHired            Status = "Hired"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusNew,
	StatusContacted,
	StatusAnalysisComplete,
	StatusMeetingScheduled,
	StatusRejected,
	StatusHired,
}

// transitions is the allowed edge set. Rejected and Hired are terminal.
var transitions = map[Status][]Status{
	StatusNew:              {StatusContacted, StatusAnalysisComplete},
	StatusAnalysisComplete: {StatusContacted, StatusRejected},
	StatusContacted:        {StatusMeetingScheduled, StatusRejected},
	StatusMeetingScheduled: {StatusHired, StatusRejected},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Next returns the states reachable from s in one step.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// IsCreationStatus reports whether a lead may be stored with this status.
func (s Status) IsCreationStatus() bool {
	return s == StatusNew || s == StatusContacted || s == StatusAnalysisComplete
}
