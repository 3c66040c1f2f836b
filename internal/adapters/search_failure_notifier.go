package adapters

import (
	"context"

	"crm_search_backend/internal/events"
	"crm_search_backend/internal/search/ports"
)

// SearchFailureNotifier turns search failure notices into bus events, which
// the notification module delivers to the user's open streams.
type SearchFailureNotifier struct {
	bus events.Publisher
}

var _ ports.Notifier = (*SearchFailureNotifier)(nil)

func NewSearchFailureNotifier(bus events.Publisher) *SearchFailureNotifier {
	return &SearchFailureNotifier{bus: bus}
}

func (n *SearchFailureNotifier) SearchFailed(ctx context.Context, notice ports.FailureNotice) {
	n.bus.Publish(ctx, events.SearchFailed{
		BaseEvent: events.NewBaseEvent(),
		UserID:    notice.UserID,
		TenantID:  notice.TenantID,
		SessionID: notice.SessionID,
		Message:   notice.Message,
	})
}
