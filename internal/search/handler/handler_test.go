package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/filters"
	"crm_search_backend/internal/search/repository"
	"crm_search_backend/internal/search/service"
	"crm_search_backend/internal/search/transport"
	"crm_search_backend/platform/httpkit"
	"crm_search_backend/platform/logger"
	"crm_search_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testServer struct {
	engine *gin.Engine
	userID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	store.Insert("customers",
		domain.Record{"id": "c-1", "name": "Acme Corp", "status": "active", "created_at": "2024-02-01T00:00:00Z"},
		domain.Record{"id": "c-2", "name": "Other Co", "status": "inactive", "created_at": "2023-02-01T00:00:00Z"},
	)
	store.Insert("deals",
		domain.Record{"id": "d-1", "title": "Acme roof", "status": "active", "value": 900.0, "created_at": "2024-01-01T00:00:00Z"},
		domain.Record{"id": "d-2", "title": "Acme solar", "status": "lost", "value": 400.0, "created_at": "2024-01-02T00:00:00Z"},
	)

	log := logger.Discard()
	val := validator.New()
	if err := transport.RegisterValidations(val); err != nil {
		t.Fatalf("register validations: %v", err)
	}
	searcher := service.NewSearcher(store, service.Limits{Default: 20, Max: 100}, log)
	svc := service.New(searcher, nil, time.Minute, log)
	h := New(svc, filters.Default(), val)

	ts := &testServer{engine: gin.New(), userID: uuid.New()}
	group := ts.engine.Group("/search")
	group.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(httpkit.ContextUserIDKey, id)
			}
		}
		c.Next()
	})
	h.RegisterRoutes(group)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return ts.doAs(t, ts.userID, method, path, body)
}

func (ts *testServer) doAs(t *testing.T, user uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/search/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[transport.SessionResponse](t, rec).SessionID
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)
	base := "/search/sessions/" + id

	rec := ts.do(t, http.MethodPost, base+"/search", map[string]any{
		"query": "acme",
		"limit": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[transport.SessionResponse](t, rec)
	if len(resp.State.Results) != 1 || !resp.State.HasMore || resp.State.TotalCount != 3 {
		t.Fatalf("unexpected first page %+v", resp.State)
	}

	rec = ts.do(t, http.MethodPost, base+"/load-more", nil)
	resp = decode[transport.SessionResponse](t, rec)
	if rec.Code != http.StatusOK || len(resp.State.Results) != 2 {
		t.Fatalf("expected 2 results after load more, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, base+"/refetch", nil)
	resp = decode[transport.SessionResponse](t, rec)
	if rec.Code != http.StatusOK || len(resp.State.Results) != 1 {
		t.Fatalf("expected first page after refetch, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, base+"/results", nil)
	resp = decode[transport.SessionResponse](t, rec)
	if rec.Code != http.StatusOK || len(resp.State.Results) != 0 || resp.State.HasMore {
		t.Fatalf("expected cleared state, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSessionBelongsToOwner(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	rec := ts.doAs(t, uuid.New(), http.MethodGet, "/search/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's session, got %d", rec.Code)
	}
}

func TestSessionSearchValidation(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "unknown type", body: map[string]any{"types": []string{"invoice"}}},
		{name: "unknown sort", body: map[string]any{"sortBy": "colour"}},
		{name: "unknown order", body: map[string]any{"sortOrder": "sideways"}},
		{name: "negative offset", body: map[string]any{"offset": -1}},
		{name: "offset past the window bound", body: map[string]any{"offset": 70368744177664}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/search/sessions/"+id+"/search", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestInvalidSessionID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/search/sessions/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.doAs(t, uuid.Nil, http.MethodPost, "/search/sessions", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOneShotSearch(t *testing.T) {
	ts := newTestServer(t)

	params := url.Values{}
	params.Set("q", "acme")
	params.Add("types", "customer,deal")
	params.Set("filters", `{"status":"active"}`)
	rec := ts.do(t, http.MethodGet, "/search?"+params.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[transport.SearchResponse](t, rec)
	if len(resp.Results) != 2 || resp.TotalCount != 2 || resp.HasMore {
		t.Fatalf("unexpected response %+v", resp)
	}
	for _, r := range resp.Results {
		if r.Status != "active" {
			t.Fatalf("expected only active results, got %s", r.Status)
		}
	}
}

func TestOneShotSearchRejectsMalformedFilters(t *testing.T) {
	ts := newTestServer(t)
	params := url.Values{}
	params.Set("filters", `{"status":`)
	rec := ts.do(t, http.MethodGet, "/search?"+params.Encode(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOneShotSearchRejectsOversizedOffset(t *testing.T) {
	ts := newTestServer(t)
	params := url.Values{}
	params.Set("types", "customer,lead")
	params.Set("offset", "70368744177664")
	rec := ts.do(t, http.MethodGet, "/search?"+params.Encode(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFilterEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/search/filters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	all := decode[transport.FiltersResponse](t, rec)
	if len(all.Entities) != len(domain.AllEntityTypes()) {
		t.Fatalf("expected filters for every type, got %d", len(all.Entities))
	}

	rec = ts.do(t, http.MethodGet, "/search/filters/deal", nil)
	one := decode[transport.EntityFiltersResponse](t, rec)
	if rec.Code != http.StatusOK || one.Type != domain.EntityDeal || len(one.Fields) == 0 {
		t.Fatalf("unexpected deal filters %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/search/filters/invoice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown type, got %d", rec.Code)
	}
}
