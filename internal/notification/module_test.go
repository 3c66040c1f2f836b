package notification

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm_search_backend/internal/events"
	"crm_search_backend/internal/notification/sse"
	"crm_search_backend/platform/httpkit"
	"crm_search_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestSearchFailedReachesUserStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	module := New(logger.Discard())
	bus := events.NewInMemoryBus(logger.Discard())
	module.RegisterHandlers(bus)

	userID := uuid.New()
	engine := gin.New()
	engine.GET("/stream", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Next()
	}, module.SSE().Handler(userIDFromContext))

	server := httptest.NewServer(engine)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	waitForLine(t, reader, "event:connected")

	bus.Publish(context.Background(), events.SearchFailed{
		BaseEvent: events.NewBaseEvent(),
		UserID:    userID,
		SessionID: "s-1",
		Message:   "database down",
	})

	waitForLine(t, reader, "event:"+string(sse.EventSearchFailed))
	line := waitForLine(t, reader, "data:")
	if !strings.Contains(line, "database down") || !strings.Contains(line, "s-1") {
		t.Fatalf("expected notice payload, got %q", line)
	}
}

func TestSearchFailedForOtherUserIsNotDelivered(t *testing.T) {
	module := New(logger.Discard())
	if err := module.Handle(context.Background(), events.SearchFailed{UserID: uuid.New(), Message: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := module.Handle(context.Background(), events.SearchFailed{Message: "anonymous"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStreamRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	module := New(logger.Discard())
	engine := gin.New()
	engine.GET("/stream", module.SSE().Handler(userIDFromContext))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClosedServiceRejectsStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	module := New(logger.Discard())
	module.Close()

	engine := gin.New()
	engine.GET("/stream", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Next()
	}, module.SSE().Handler(userIDFromContext))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if module.SSE().ClientCount(uuid.New()) != 0 {
		t.Fatalf("expected no clients")
	}
}

func waitForLine(t *testing.T, r *bufio.Reader, prefix string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream waiting for %q: %v", prefix, err)
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
}
