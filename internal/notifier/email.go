package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure EmailNotifier implements model.Notifier.
var _ model.Notifier = (*EmailNotifier)(nil)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier mails lead events to the operator over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	to     string
	send   func(ctx context.Context, m *mail.Msg) error
	now    func() time.Time
	logger *slog.Logger
}

// NewEmailNotifier returns a notifier that mails each event to operatorEmail.
func NewEmailNotifier(cfg SMTPConfig, operatorEmail string, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{
		cfg:    cfg,
		to:     operatorEmail,
		now:    time.Now,
		logger: logger,
	}
	n.send = n.dialAndSend
	return n
}

// Notify sends one plain-text message.
func (n *EmailNotifier) Notify(ctx context.Context, e model.LeadEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email notification: %w", err)
	}

	m, err := n.buildMessage(e)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}
	if err := n.send(ctx, m); err != nil {
		return fmt.Errorf("send email to %s: %w", n.to, err)
	}
	n.logger.Info("email notification sent", "vacancy_id", e.Lead.VacancyID, "event", string(e.Kind))
	return nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	c, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, m)
}

// buildMessage leaves header encoding to go-mail, so the subject goes out as
// an RFC 2047 word whenever the title is not plain ASCII.
func (n *EmailNotifier) buildMessage(e model.LeadEvent) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", n.cfg.From, err)
	}
	if err := m.To(n.to); err != nil {
		return nil, fmt.Errorf("to %q: %w", n.to, err)
	}
	m.Subject(headline(e))
	m.SetDateWithValue(n.now())
	m.SetBodyString(mail.TypeTextPlain, emailBody(e))
	return m, nil
}

func emailBody(e model.LeadEvent) string {
	l := e.Lead
	var b strings.Builder

	switch e.Kind {
	case model.EventNewLead:
		b.WriteString("A new lead was contacted.\n\n")
	case model.EventDispatchFailed:
		b.WriteString("The response could not be delivered. The lead is stored as Analysis Complete; reply manually.\n\n")
	case model.EventStatusChanged:
		fmt.Fprintf(&b, "Status changed from %s to %s.\n\n", e.PrevStatus, l.Status)
	}

	fmt.Fprintf(&b, "Vacancy: %s\n", l.Title)
	fmt.Fprintf(&b, "Company: %s\n", orNA(l.Company))
	fmt.Fprintf(&b, "Recruiter: %s\n", recruiter(l))
	fmt.Fprintf(&b, "Vacancy URL: %s\n", orNA(l.URL))
	fmt.Fprintf(&b, "Meeting link: %s\n", meetingLink(l))
	fmt.Fprintf(&b, "Status: %s\n", l.Status)
	if l.Feedback != "" {
		fmt.Fprintf(&b, "Feedback: %s\n", l.Feedback)
	}
	if e.Kind != model.EventStatusChanged && l.GeneratedResponse != "" {
		fmt.Fprintf(&b, "\nGenerated response:\n%s\n", l.GeneratedResponse)
	}
	return b.String()
}
