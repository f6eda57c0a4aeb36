package notifier

import (
	"context"
	"log/slog"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes lead events to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each event via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(ctx context.Context, e model.LeadEvent) error {
	l := e.Lead
	args := []any{
		"event", string(e.Kind),
		"lead_id", l.ID,
		"vacancy_id", l.VacancyID,
		"title", l.Title,
		"company", l.Company,
		"status", string(l.Status),
		"url", l.URL,
	}
	if e.Kind == model.EventStatusChanged {
		args = append(args, "prev_status", string(e.PrevStatus))
	}
	if l.MeetingLink != nil {
		args = append(args, "meeting_link", *l.MeetingLink)
	}

	level := slog.LevelInfo
	if e.Kind == model.EventDispatchFailed {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, headline(e), args...)
	return nil
}
