package outreach

import (
	"context"
	"log/slog"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure DryRunDispatcher implements model.Dispatcher.
var _ model.Dispatcher = (*DryRunDispatcher)(nil)

// DryRunDispatcher logs the message instead of sending it and always reports
// it as not sent.
type DryRunDispatcher struct {
	logger *slog.Logger
}

// NewDryRunDispatcher creates a DryRunDispatcher.
func NewDryRunDispatcher(logger *slog.Logger) *DryRunDispatcher {
	return &DryRunDispatcher{logger: logger}
}

// Send logs the message and returns false.
func (d *DryRunDispatcher) Send(_ context.Context, vacancyID, message string) (bool, error) {
	d.logger.Info("dry-run: outreach not sent", "vacancy_id", vacancyID, "message", message)
	return false, nil
}
