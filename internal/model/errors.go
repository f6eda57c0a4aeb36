package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when a lead id does not exist.
	ErrNotFound = errors.New("lead not found")
	// ErrIllegalTransition is returned when a status change is not in the transition table.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrUnknownStatus is returned when a status string is not one of the known states.
	ErrUnknownStatus = errors.New("unknown lead status")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	LeadID int64
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lead %d: %q -> %q: %v", e.LeadID, e.From, e.To, ErrIllegalTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// ParseRetryAfter parses a Retry-After header value in seconds (e.g. "120").
// Returns zero if absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
