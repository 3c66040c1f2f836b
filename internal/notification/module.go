// Package notification delivers user-facing notices in response to domain
// events. Modules publish events; this module decides how the user hears
// about them, currently over a per-user Server-Sent Events stream.
package notification

import (
	"context"

	"crm_search_backend/internal/events"
	apphttp "crm_search_backend/internal/http"
	"crm_search_backend/internal/notification/sse"
	"crm_search_backend/platform/httpkit"
	"crm_search_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module wires event subscriptions to the SSE stream.
type Module struct {
	sse *sse.Service
	log *logger.Logger
}

// New creates the notification module.
func New(log *logger.Logger) *Module {
	return &Module{
		sse: sse.New(log),
		log: log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the notification stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	notifications.GET("/stream", m.sse.Handler(userIDFromContext))
}

// RegisterHandlers subscribes the module to the events it turns into notices.
func (m *Module) RegisterHandlers(bus events.Subscriber) {
	bus.Subscribe(events.SearchFailedEventName, m)
}

// SSE exposes the stream service.
func (m *Module) SSE() *sse.Service { return m.sse }

// Close disconnects every open stream.
func (m *Module) Close() { m.sse.Close() }

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SearchFailed:
		return m.handleSearchFailed(ctx, e)
	default:
		m.log.Debug("notification: unhandled event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleSearchFailed(_ context.Context, e events.SearchFailed) error {
	if e.UserID == uuid.Nil {
		return nil
	}
	m.sse.Publish(e.UserID, sse.Event{
		Type:      sse.EventSearchFailed,
		SessionID: e.SessionID,
		Message:   e.Message,
	})
	return nil
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		return uuid.Nil, false
	}
	return id.UserID(), true
}
