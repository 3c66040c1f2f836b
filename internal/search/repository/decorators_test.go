package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
	"crm_search_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

type countingStore struct {
	calls atomic.Int32
	page  ports.Page
	err   error
}

func (s *countingStore) Query(context.Context, query.PredicateSet) (ports.Page, error) {
	s.calls.Add(1)
	return s.page, s.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedStoreServesRepeatsFromRedis(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &countingStore{page: ports.Page{
		Records: []domain.Record{{"id": "l-1", "name": "Acme", "value": 12.5}},
		Total:   1,
	}}
	store := NewCachedStore(inner, client, time.Minute, logger.Discard())
	set := mustBuild(t, domain.EntityLead, domain.SearchOptions{Query: "acme"})

	first, err := store.Query(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Query(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls.Load() != 1 {
		t.Fatalf("expected inner store to be called once, got %d", inner.calls.Load())
	}
	if first.Total != second.Total || len(second.Records) != 1 || second.Records[0]["id"] != "l-1" {
		t.Fatalf("expected cached page to match, got %+v", second)
	}
}

func TestCachedStoreKeysOnPredicates(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &countingStore{page: ports.Page{Records: []domain.Record{}}}
	store := NewCachedStore(inner, client, time.Minute, logger.Discard())

	_, _ = store.Query(context.Background(), mustBuild(t, domain.EntityLead, domain.SearchOptions{Query: "a"}))
	_, _ = store.Query(context.Background(), mustBuild(t, domain.EntityLead, domain.SearchOptions{Query: "b"}))

	if inner.calls.Load() != 2 {
		t.Fatalf("expected distinct queries to miss, got %d inner calls", inner.calls.Load())
	}
}

func TestCachedStoreFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	inner := &countingStore{page: ports.Page{Records: []domain.Record{{"id": "x"}}, Total: 1}}
	store := NewCachedStore(inner, client, time.Minute, logger.Discard())

	page, err := store.Query(context.Background(), mustBuild(t, domain.EntityLead, domain.SearchOptions{}))
	if err != nil {
		t.Fatalf("expected fallback to inner store, got %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected inner page, got %+v", page)
	}
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &countingStore{err: errors.New("db down")}
	store := NewCachedStore(inner, client, time.Minute, logger.Discard())
	set := mustBuild(t, domain.EntityLead, domain.SearchOptions{})

	for i := 0; i < 2; i++ {
		if _, err := store.Query(context.Background(), set); err == nil {
			t.Fatalf("expected error")
		}
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("expected every call to reach the inner store, got %d", inner.calls.Load())
	}
}

func TestBreakerStoreOpensPerTable(t *testing.T) {
	failing := &countingStore{err: errors.New("timeout")}
	healthy := &countingStore{page: ports.Page{Records: []domain.Record{}}}
	router := ports.RecordStoreFunc(func(ctx context.Context, set query.PredicateSet) (ports.Page, error) {
		if set.Table == "deals" {
			return failing.Query(ctx, set)
		}
		return healthy.Query(ctx, set)
	})

	store := NewBreakerStore(router, BreakerSettings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		TripRatio:   0.5,
	}, logger.Discard())

	deals := mustBuild(t, domain.EntityDeal, domain.SearchOptions{})
	for i := 0; i < minBreakerRequests; i++ {
		_, _ = store.Query(context.Background(), deals)
	}
	if store.State("deals") != gobreaker.StateOpen {
		t.Fatalf("expected deals circuit to be open, got %s", store.State("deals"))
	}

	_, err := store.Query(context.Background(), deals)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if failing.calls.Load() != minBreakerRequests {
		t.Fatalf("expected open circuit to skip the store, got %d calls", failing.calls.Load())
	}

	if _, err := store.Query(context.Background(), mustBuild(t, domain.EntityLead, domain.SearchOptions{})); err != nil {
		t.Fatalf("expected leads to be unaffected, got %v", err)
	}
}

func TestBreakerStoreIgnoresCallerCancellation(t *testing.T) {
	inner := &countingStore{err: context.Canceled}
	store := NewBreakerStore(inner, BreakerSettings{MaxRequests: 1, Timeout: time.Minute, TripRatio: 0.1}, logger.Discard())
	set := mustBuild(t, domain.EntityTask, domain.SearchOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		if _, err := store.Query(ctx, set); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
	if store.State("tasks") != gobreaker.StateClosed {
		t.Fatalf("expected circuit to stay closed, got %s", store.State("tasks"))
	}
}
