package service

import (
	"context"
	"sync"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/platform/logger"

	"github.com/google/uuid"
)

// Session owns one SearchState and mutates it only through Search, LoadMore,
// Refetch and ClearResults. A newer search or a clear supersedes searches
// still in flight; their completions are discarded.
type Session struct {
	id       string
	owner    uuid.UUID
	tenant   *uuid.UUID
	searcher *Searcher
	notifier ports.Notifier
	log      *logger.Logger

	mu         sync.Mutex
	state      domain.SearchState
	last       *domain.SearchOptions
	generation uint64
}

// SessionParams identifies who a session belongs to.
type SessionParams struct {
	ID     string
	Owner  uuid.UUID
	Tenant *uuid.UUID
}

// NewSession creates an idle session with an empty state.
func NewSession(params SessionParams, searcher *Searcher, notifier ports.Notifier, log *logger.Logger) *Session {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	return &Session{
		id:       params.ID,
		owner:    params.Owner,
		tenant:   params.Tenant,
		searcher: searcher,
		notifier: notifier,
		log:      log,
		state:    domain.NewSearchState(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the current state.
func (s *Session) State() domain.SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Copy()
}

// Search runs opts. An offset of zero replaces the results; any other offset
// appends the new page. On failure the previous results are kept, Error is
// set and the notifier is told.
func (s *Session) Search(ctx context.Context, opts domain.SearchOptions) error {
	prepared, err := s.searcher.Prepare(opts)
	if err != nil {
		s.mu.Lock()
		s.generation++
		s.state.Loading = false
		s.state.Error = err.Error()
		s.mu.Unlock()
		s.notify(ctx, err)
		return err
	}

	s.mu.Lock()
	gen := s.beginLocked(prepared)
	s.mu.Unlock()

	return s.run(ctx, gen, prepared, nil)
}

// LoadMore appends the next results not yet shown. It does nothing while a
// search is loading, when nothing more is available, or before any search.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Loading || !s.state.HasMore || s.last == nil {
		s.mu.Unlock()
		return nil
	}
	opts := s.last.Clone()
	opts.Offset = len(s.state.Results)
	shown := s.state.Results
	gen := s.beginLocked(opts)
	s.mu.Unlock()

	return s.run(ctx, gen, opts, shown)
}

// Refetch reloads the first page of the last search.
func (s *Session) Refetch(ctx context.Context) error {
	s.mu.Lock()
	if s.last == nil {
		s.mu.Unlock()
		return nil
	}
	opts := s.last.Clone()
	opts.Offset = 0
	gen := s.beginLocked(opts)
	s.mu.Unlock()

	return s.run(ctx, gen, opts, nil)
}

// ClearResults resets to the initial state and forgets the last search.
func (s *Session) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = domain.NewSearchState()
	s.last = nil
}

func (s *Session) beginLocked(opts domain.SearchOptions) uint64 {
	s.generation++
	s.state.Loading = true
	s.state.Error = ""
	last := opts.Clone()
	s.last = &last
	return s.generation
}

// run fetches opts and applies the outcome unless a newer search started
// meanwhile. shown holds the results a follow-up page must not repeat.
func (s *Session) run(ctx context.Context, gen uint64, opts domain.SearchOptions, shown []domain.SearchResult) error {
	out, err := s.searcher.FetchAfter(ctx, opts, s.tenant, shown)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.state.Loading = false
		s.state.Error = err.Error()
		s.mu.Unlock()
		s.notify(ctx, err)
		return err
	}

	if opts.Offset == 0 {
		s.state.Results = out.Page
	} else {
		merged := make([]domain.SearchResult, 0, len(s.state.Results)+len(out.Page))
		merged = append(merged, s.state.Results...)
		s.state.Results = append(merged, out.Page...)
	}
	s.state.TotalCount = out.TotalCount
	s.state.HasMore = out.HasMore
	s.state.Loading = false
	s.mu.Unlock()
	return nil
}

func (s *Session) notify(ctx context.Context, err error) {
	notifyFailure(ctx, s.log, s.notifier, ports.FailureNotice{
		UserID:    s.owner,
		TenantID:  s.tenant,
		SessionID: s.id,
	}, err)
}

func notifyFailure(ctx context.Context, log *logger.Logger, notifier ports.Notifier, notice ports.FailureNotice, err error) {
	log.WithContext(ctx).Warn("search_failed", "session_id", notice.SessionID, "error", err.Error())
	notice.Message = err.Error()
	notifier.SearchFailed(context.WithoutCancel(ctx), notice)
}
