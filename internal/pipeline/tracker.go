package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Tracker applies operator-driven status changes (recruiter replied, meeting
// booked, offer) and tells the operator's notifier about them.
type Tracker struct {
	store         model.LeadStore
	notifier      model.Notifier
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// NewTracker creates a Tracker. notifier may be nil.
func NewTracker(store model.LeadStore, notifier model.Notifier, notifyTimeout time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:         store,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// Transition moves lead id to status. It returns model.ErrNotFound for an
// unknown id and a *model.TransitionError for an edge the table forbids.
// A successful change emits a status_changed event; notification failures
// are logged, not returned.
func (t *Tracker) Transition(ctx context.Context, id int64, status model.Status, feedback *string) (model.Lead, error) {
	lead, prev, err := t.store.UpdateStatus(ctx, id, status, feedback)
	if err != nil {
		return model.Lead{}, err
	}

	logger := t.logger.With("lead_id", lead.ID, "vacancy_id", lead.VacancyID)
	logger.Info("lead status changed", "prev_status", string(prev), "status", string(lead.Status))

	if t.notifier != nil {
		nctx, cancel := withTimeout(context.WithoutCancel(ctx), t.notifyTimeout)
		defer cancel()
		event := model.LeadEvent{Kind: model.EventStatusChanged, Lead: lead, PrevStatus: prev}
		if err := t.notifier.Notify(nctx, event); err != nil {
			logger.Warn("notification failed", "boundary", "notifier", "event", string(event.Kind), "error", err)
		}
	}
	return lead, nil
}
