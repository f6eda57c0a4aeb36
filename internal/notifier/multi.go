package notifier

import (
	"context"
	"errors"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure MultiNotifier implements model.Notifier.
var _ model.Notifier = (MultiNotifier)(nil)

// MultiNotifier fans an event out to every notifier. All are attempted even
// when one fails; the failures are joined.
type MultiNotifier []model.Notifier

// Notify delivers e to every notifier in order.
func (m MultiNotifier) Notify(ctx context.Context, e model.LeadEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
