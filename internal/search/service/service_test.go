package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
	"crm_search_backend/platform/apperr"
	"crm_search_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestService(ttl time.Duration) *Service {
	searcher := NewSearcher(crmStore(), Limits{Default: 20, Max: 100}, logger.Discard())
	return New(searcher, nil, ttl, logger.Discard())
}

func TestServiceSessionLifecycle(t *testing.T) {
	svc := newTestService(time.Minute)
	owner := uuid.New()
	ctx := context.Background()

	id, state := svc.CreateSession(owner, nil)
	if len(state.Results) != 0 || state.Loading {
		t.Fatalf("expected empty initial state, got %+v", state)
	}

	state, err := svc.Search(ctx, owner, id, domain.SearchOptions{Query: "acme", Types: []domain.EntityType{domain.EntityCustomer}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(state.Results))
	}

	state, err = svc.ClearResults(owner, id)
	if err != nil || len(state.Results) != 0 {
		t.Fatalf("expected cleared state, got %+v (%v)", state, err)
	}

	if err := svc.DeleteSession(owner, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetState(owner, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestServiceHidesForeignSessions(t *testing.T) {
	svc := newTestService(time.Minute)
	id, _ := svc.CreateSession(uuid.New(), nil)

	_, err := svc.GetState(uuid.New(), id)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found kind, got %v", apperr.GetKind(err))
	}
}

func TestServiceMapsSearchErrors(t *testing.T) {
	svc := newTestService(time.Minute)
	owner := uuid.New()
	id, _ := svc.CreateSession(owner, nil)

	state, err := svc.Search(context.Background(), owner, id, domain.SearchOptions{SortBy: "colour"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if state.Error == "" {
		t.Fatalf("expected the session state to carry the error")
	}
}

func TestServiceEvictsIdleSessions(t *testing.T) {
	svc := newTestService(10 * time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	owner := uuid.New()
	stale, _ := svc.CreateSession(owner, nil)
	now = now.Add(8 * time.Minute)
	fresh, _ := svc.CreateSession(owner, nil)
	now = now.Add(5 * time.Minute)

	if n := svc.EvictIdle(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := svc.GetState(owner, stale); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected stale session to be gone, got %v", err)
	}
	if _, err := svc.GetState(owner, fresh); err != nil {
		t.Fatalf("expected fresh session to survive, got %v", err)
	}
}

func TestServiceAccessKeepsSessionAlive(t *testing.T) {
	svc := newTestService(10 * time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	owner := uuid.New()
	id, _ := svc.CreateSession(owner, nil)
	now = now.Add(9 * time.Minute)
	_, _ = svc.GetState(owner, id)
	now = now.Add(9 * time.Minute)

	if n := svc.EvictIdle(); n != 0 {
		t.Fatalf("expected no eviction, got %d", n)
	}
}

func TestServiceSearchOnce(t *testing.T) {
	svc := newTestService(time.Minute)

	out, err := svc.SearchOnce(context.Background(), uuid.New(), nil, domain.SearchOptions{Query: "acme", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Page) != 2 || !out.HasMore {
		t.Fatalf("expected 2 results with more, got %d (hasMore=%v)", len(out.Page), out.HasMore)
	}
	if out.Page[0].Title != "Acme Corp" && out.Page[0].Title != "Acme lead" && out.Page[0].Title != "Acme roof" {
		t.Fatalf("expected a title prefix match first, got %q", out.Page[0].Title)
	}

	if _, err := svc.SearchOnce(context.Background(), uuid.New(), nil, domain.SearchOptions{Offset: -1}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceSearchOnceRejectsOversizedOffset(t *testing.T) {
	svc := newTestService(time.Minute)
	opts := domain.SearchOptions{
		Types:  []domain.EntityType{domain.EntityCustomer, domain.EntityLead},
		Offset: 1 << 46,
	}
	_, err := svc.SearchOnce(context.Background(), uuid.New(), nil, opts)
	if !errors.Is(err, domain.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation kind, got %v", apperr.GetKind(err))
	}
}

func TestServiceSearchOnceNotifiesOnFailure(t *testing.T) {
	store := ports.RecordStoreFunc(func(context.Context, query.PredicateSet) (ports.Page, error) {
		return ports.Page{}, errors.New("database down")
	})
	notifier := &recordingNotifier{}
	svc := New(NewSearcher(store, Limits{}, logger.Discard()), notifier, time.Minute, logger.Discard())
	owner := uuid.New()
	tenant := uuid.New()

	_, err := svc.SearchOnce(context.Background(), owner, &tenant, domain.SearchOptions{Query: "acme"})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}
	notice := notifier.notices[0]
	if notice.UserID != owner || notice.TenantID == nil || *notice.TenantID != tenant {
		t.Fatalf("unexpected notice %+v", notice)
	}
	if notice.SessionID != "" || notice.Message == "" {
		t.Fatalf("expected a session-less notice with a message, got %+v", notice)
	}
}

func TestServiceRunStopsWithContext(t *testing.T) {
	svc := newTestService(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}
