package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/FlowNice/job-application-agent/internal/model"
)

func TestCalendly_IssuesSingleUseLink(t *testing.T) {
	var (
		gotAuth string
		gotReq  schedulingLinkRequest
		gotPath string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resource":{"booking_url":"https://calendly.com/d/abcd-1234","owner":"x","owner_type":"EventType"}}`))
	}))
	defer srv.Close()

	issuer := NewCalendlyIssuer(srv.URL, "cal-token", srv.Client())
	link, err := issuer.IssueSingleUseLink(context.Background(), "John Doe", "john.doe@example.com", "ET-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/scheduling_links" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer cal-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.MaxEventCount != 1 || gotReq.OwnerType != "EventType" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Owner != "https://api.calendly.com/event_types/ET-123" {
		t.Errorf("owner = %q", gotReq.Owner)
	}
	want := "https://calendly.com/d/abcd-1234?email=john.doe%40example.com&name=John+Doe"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestCalendly_KeepsFullEventTypeURI(t *testing.T) {
	issuer := NewCalendlyIssuer("", "t", nil)
	uri := "https://api.calendly.com/event_types/AAA"
	if got := issuer.eventTypeURI(uri); got != uri {
		t.Errorf("eventTypeURI = %q", got)
	}
}

func TestCalendly_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Unauthenticated"}`))
	}))
	defer srv.Close()

	issuer := NewCalendlyIssuer(srv.URL, "bad", srv.Client())
	_, err := issuer.IssueSingleUseLink(context.Background(), "", "", "ET-1")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected HTTPError 401, got %v", err)
	}
}

func TestCalendly_MissingBookingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"resource":{}}`))
	}))
	defer srv.Close()

	issuer := NewCalendlyIssuer(srv.URL, "t", srv.Client())
	if _, err := issuer.IssueSingleUseLink(context.Background(), "", "", "ET-1"); err == nil {
		t.Fatal("expected error when booking_url is missing")
	}
}

func TestCalendly_RequiresEventType(t *testing.T) {
	issuer := NewCalendlyIssuer("", "t", http.DefaultClient)
	if _, err := issuer.IssueSingleUseLink(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error without event type")
	}
}

func TestStatic_UniqueTokenPerLink(t *testing.T) {
	issuer := NewStaticIssuer("https://meet.example.com/book/")

	a, err := issuer.IssueSingleUseLink(context.Background(), "", "", "intro")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := issuer.IssueSingleUseLink(context.Background(), "", "", "intro")
	if a == b {
		t.Error("expected a distinct token per link")
	}

	prefix := "https://meet.example.com/book/intro/"
	if !strings.HasPrefix(a, prefix) {
		t.Fatalf("link = %q, want prefix %q", a, prefix)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, prefix)); err != nil {
		t.Errorf("token is not a uuid: %v", err)
	}
}

func TestStatic_PrefillsRecruiter(t *testing.T) {
	issuer := NewStaticIssuer("https://meet.example.com")
	issuer.newID = func() uuid.UUID { return uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") }

	link, err := issuer.IssueSingleUseLink(context.Background(), "Jane", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != "https://meet.example.com/6ba7b810-9dad-11d1-80b4-00c04fd430c8?name=Jane" {
		t.Errorf("link = %q", link)
	}
}

func TestStatic_RequiresBaseURL(t *testing.T) {
	if _, err := NewStaticIssuer("").IssueSingleUseLink(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error without base url")
	}
}
