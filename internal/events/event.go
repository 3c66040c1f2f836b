// Package events names the events this service publishes. The bus itself
// lives in platform/events; the aliases keep callers on one import.
package events

import (
	"github.com/google/uuid"

	"crm_search_backend/platform/events"
	"crm_search_backend/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Subscriber  = events.Subscriber
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// NewInMemoryBus creates the process-wide bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// SearchFailedEventName is the bus name of SearchFailed.
const SearchFailedEventName = "search.failed"

// SearchFailed is published when a search fails as a whole and the user
// should see an error. SessionID is empty for one-shot searches.
type SearchFailed struct {
	BaseEvent
	UserID    uuid.UUID  `json:"userId"`
	TenantID  *uuid.UUID `json:"tenantId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Message   string     `json:"message"`
}

func (e SearchFailed) EventName() string { return SearchFailedEventName }
