package notifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/FlowNice/job-application-agent/internal/model"
)

var testSMTP = SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "agent", Password: "pw", From: "agent@example.com"}

func newTestEmailNotifier(cfg SMTPConfig, sendErr error) (*EmailNotifier, *[]*mail.Msg) {
	var sent []*mail.Msg
	n := NewEmailNotifier(cfg, "operator@example.com", discardLogger())
	n.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	n.send = func(_ context.Context, m *mail.Msg) error {
		sent = append(sent, m)
		return sendErr
	}
	return n, &sent
}

type renderedMail struct {
	header  netmail.Header
	subject string
	body    string
}

// render writes m the way it goes on the wire and parses it back.
func render(t *testing.T, m *mail.Msg) renderedMail {
	t.Helper()
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	parsed, err := netmail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v\n%s", err, buf.String())
	}
	raw, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	return renderedMail{
		header:  parsed.Header,
		subject: subject,
		body:    strings.ReplaceAll(string(raw), "\r\n", "\n"),
	}
}

func TestEmailNotifier_SendsNewLead(t *testing.T) {
	n, sent := newTestEmailNotifier(testSMTP, nil)

	if err := n.Notify(context.Background(), newLeadEvent()); err != nil {
		t.Fatalf("Notify() = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(*sent))
	}
	got := render(t, (*sent)[0])

	if got.subject != "New lead: Python Developer at Tech Solutions Inc." {
		t.Errorf("subject = %q", got.subject)
	}
	if to := got.header.Get("To"); !strings.Contains(to, "operator@example.com") {
		t.Errorf("To = %q", to)
	}
	if from := got.header.Get("From"); !strings.Contains(from, "agent@example.com") {
		t.Errorf("From = %q", from)
	}
	for _, want := range []string{
		"Recruiter: John Doe (john.doe@example.com)",
		"Meeting link: N/A",
		"Generated response:\nHello...",
	} {
		if !strings.Contains(got.body, want) {
			t.Errorf("body missing %q:\n%s", want, got.body)
		}
	}
}

func TestEmailNotifier_TitleCannotAddHeaders(t *testing.T) {
	n, sent := newTestEmailNotifier(testSMTP, nil)
	e := newLeadEvent()
	e.Lead.Title = "Go Dev\r\nBcc: attacker@evil.example"
	e.Lead.Company = "Кодова\nФабрика"

	if err := n.Notify(context.Background(), e); err != nil {
		t.Fatalf("Notify() = %v", err)
	}
	got := render(t, (*sent)[0])

	if bcc := got.header.Get("Bcc"); bcc != "" {
		t.Fatalf("title injected a Bcc header: %q", bcc)
	}
	want := "New lead: Go Dev Bcc: attacker@evil.example at Кодова Фабрика"
	if got.subject != want {
		t.Errorf("subject = %q, want %q", got.subject, want)
	}
	if raw := strings.ToLower(got.header.Get("Subject")); !strings.Contains(raw, "=?utf-8?q?") {
		t.Errorf("subject not RFC 2047 encoded: %q", got.header.Get("Subject"))
	}
}

func TestEmailNotifier_InvalidFromIsAnError(t *testing.T) {
	cfg := testSMTP
	cfg.From = "not an address"
	n, sent := newTestEmailNotifier(cfg, nil)

	if err := n.Notify(context.Background(), newLeadEvent()); err == nil {
		t.Fatal("expected error for invalid From")
	}
	if len(*sent) != 0 {
		t.Error("nothing should be sent without a valid From")
	}
}

func TestEmailNotifier_PropagatesError(t *testing.T) {
	n, _ := newTestEmailNotifier(testSMTP, errors.New("connection refused"))
	if err := n.Notify(context.Background(), newLeadEvent()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmailNotifier_CancelledContextSkipsSend(t *testing.T) {
	n, sent := newTestEmailNotifier(testSMTP, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, newLeadEvent()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(*sent) != 0 {
		t.Error("mail should not be sent after cancellation")
	}
}

func TestEmailNotifier_DispatchFailedBody(t *testing.T) {
	n, sent := newTestEmailNotifier(testSMTP, nil)
	e := newLeadEvent()
	e.Kind = model.EventDispatchFailed
	e.Lead.Status = model.StatusAnalysisComplete
	n.Notify(context.Background(), e)

	if got := render(t, (*sent)[0]); !strings.Contains(got.body, "could not be delivered") {
		t.Errorf("body = %s", got.body)
	}
}
