// Package service orchestrates searches: the stateless fan-out Searcher,
// per-user Sessions holding a SearchState, and the registry that owns them.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/platform/apperr"
	"crm_search_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
var ErrSessionNotFound = errors.New("search session not found")

const defaultSessionTTL = 30 * time.Minute

// Service is the registry of search sessions.
type Service struct {
	searcher *Searcher
	notifier ports.Notifier
	log      *logger.Logger
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	session    *Session
	owner      uuid.UUID
	lastAccess time.Time
}

// New creates a registry. Sessions idle for longer than ttl are evicted by Run.
func New(searcher *Searcher, notifier ports.Notifier, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	return &Service{
		searcher: searcher,
		notifier: notifier,
		log:      log,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
}

// CreateSession opens an idle session for owner, scoped to tenant when set.
func (s *Service) CreateSession(owner uuid.UUID, tenant *uuid.UUID) (uuid.UUID, domain.SearchState) {
	id := uuid.New()
	session := NewSession(SessionParams{ID: id.String(), Owner: owner, Tenant: tenant}, s.searcher, s.notifier, s.log)

	s.mu.Lock()
	s.sessions[id] = &sessionEntry{session: session, owner: owner, lastAccess: s.now()}
	s.mu.Unlock()

	return id, session.State()
}

// GetState returns the state of one of owner's sessions.
func (s *Service) GetState(owner, id uuid.UUID) (domain.SearchState, error) {
	session, err := s.lookup(owner, id)
	if err != nil {
		return domain.SearchState{}, err
	}
	return session.State(), nil
}

// Search runs opts in a session and returns the resulting state.
func (s *Service) Search(ctx context.Context, owner, id uuid.UUID, opts domain.SearchOptions) (domain.SearchState, error) {
	session, err := s.lookup(owner, id)
	if err != nil {
		return domain.SearchState{}, err
	}
	if err := session.Search(ctx, opts); err != nil {
		return session.State(), mapSearchError(err, "Search")
	}
	return session.State(), nil
}

// LoadMore appends the next page to a session's results.
func (s *Service) LoadMore(ctx context.Context, owner, id uuid.UUID) (domain.SearchState, error) {
	session, err := s.lookup(owner, id)
	if err != nil {
		return domain.SearchState{}, err
	}
	if err := session.LoadMore(ctx); err != nil {
		return session.State(), mapSearchError(err, "LoadMore")
	}
	return session.State(), nil
}

// Refetch reloads the first page of a session's last search.
func (s *Service) Refetch(ctx context.Context, owner, id uuid.UUID) (domain.SearchState, error) {
	session, err := s.lookup(owner, id)
	if err != nil {
		return domain.SearchState{}, err
	}
	if err := session.Refetch(ctx); err != nil {
		return session.State(), mapSearchError(err, "Refetch")
	}
	return session.State(), nil
}

// ClearResults resets a session.
func (s *Service) ClearResults(owner, id uuid.UUID) (domain.SearchState, error) {
	session, err := s.lookup(owner, id)
	if err != nil {
		return domain.SearchState{}, err
	}
	session.ClearResults()
	return session.State(), nil
}

// DeleteSession drops a session.
func (s *Service) DeleteSession(owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || entry.owner != owner {
		return notFound()
	}
	delete(s.sessions, id)
	return nil
}

// SearchOnce runs a single stateless search for owner. A failed search is
// reported to the notifier like a session search, without a session id.
func (s *Service) SearchOnce(ctx context.Context, owner uuid.UUID, tenant *uuid.UUID, opts domain.SearchOptions) (Outcome, error) {
	prepared, err := s.searcher.Prepare(opts)
	if err == nil {
		var out Outcome
		if out, err = s.searcher.Fetch(ctx, prepared, tenant); err == nil {
			return out, nil
		}
	}
	notifyFailure(ctx, s.log, s.notifier, ports.FailureNotice{UserID: owner, TenantID: tenant}, err)
	return Outcome{}, mapSearchError(err, "SearchOnce")
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run evicts idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.log.Info("search sessions evicted", "count", n)
			}
		}
	}
}

// EvictIdle removes sessions idle for longer than the TTL and returns how
// many were removed.
func (s *Service) EvictIdle() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.sessions {
		if entry.lastAccess.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Service) lookup(owner, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || entry.owner != owner {
		return nil, notFound()
	}
	entry.lastAccess = s.now()
	return entry.session, nil
}

func notFound() error {
	return apperr.Wrap(apperr.KindNotFound, "search session not found", ErrSessionNotFound)
}

func mapSearchError(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidOptions):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithOp(op)
	case errors.Is(err, ErrAllTypesFailed):
		return apperr.Wrap(apperr.KindUnavailable, "search is temporarily unavailable", err).WithOp(op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindUnavailable, "search was cancelled", err).WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "search failed", err).WithOp(op)
	}
}
