package repository

import (
	"context"
	"sync"
	"time"

	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
	"crm_search_backend/platform/logger"

	"github.com/sony/gobreaker"
)

// minBreakerRequests is the sample size below which a circuit never trips.
const minBreakerRequests = 3

// BreakerSettings configures the per-table circuit breakers.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	TripRatio   float64
}

// BreakerStore runs every query through a circuit breaker for its table, so
// one failing table fails fast without affecting the others.
type BreakerStore struct {
	inner    ports.RecordStore
	settings BreakerSettings
	log      *logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ ports.RecordStore = (*BreakerStore)(nil)

// NewBreakerStore wraps inner.
func NewBreakerStore(inner ports.RecordStore, settings BreakerSettings, log *logger.Logger) *BreakerStore {
	return &BreakerStore{
		inner:    inner,
		settings: settings,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Query implements ports.RecordStore. An open circuit returns
// gobreaker.ErrOpenState without calling the inner store.
func (s *BreakerStore) Query(ctx context.Context, set query.PredicateSet) (ports.Page, error) {
	cb := s.breaker(set.Table)
	out, err := cb.Execute(func() (interface{}, error) {
		page, err := s.inner.Query(ctx, set)
		// A cancelled caller says nothing about the table's health.
		if err != nil && ctx.Err() != nil {
			return page, nil
		}
		return page, err
	})
	if err != nil {
		return ports.Page{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ports.Page{}, ctxErr
	}
	return out.(ports.Page), nil
}

// State reports the circuit state of table.
func (s *BreakerStore) State(table string) gobreaker.State {
	return s.breaker(table).State()
}

func (s *BreakerStore) breaker(table string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[table]; ok {
		return cb
	}

	ratio := s.settings.TripRatio
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "search:" + table,
		MaxRequests: s.settings.MaxRequests,
		Interval:    s.settings.Interval,
		Timeout:     s.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minBreakerRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.log.Warn("circuit_breaker_state_change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	s.breakers[table] = cb
	return cb
}
