package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
	"crm_search_backend/internal/search/ranking"
	"crm_search_backend/internal/search/transform"
	"crm_search_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrAllTypesFailed is returned when every selected entity type's query failed.
var ErrAllTypesFailed = errors.New("search failed for every selected type")

// Limits bounds page sizes.
type Limits struct {
	Default int
	Max     int
}

// Outcome is one merged page.
type Outcome struct {
	Page       []domain.SearchResult
	TotalCount int
	HasMore    bool
}

// Searcher fans one search out over the selected entity types and merges
// the branches. It holds no per-caller state.
type Searcher struct {
	store  ports.RecordStore
	limits Limits
	log    *logger.Logger
}

// NewSearcher creates a Searcher. Zero limits fall back to domain.DefaultLimit
// and no upper bound.
func NewSearcher(store ports.RecordStore, limits Limits, log *logger.Logger) *Searcher {
	if limits.Default <= 0 {
		limits.Default = domain.DefaultLimit
	}
	return &Searcher{store: store, limits: limits, log: log}
}

// Prepare applies defaults and validates opts. Limits above the configured
// maximum are clamped; offsets above domain.MaxOffset are rejected.
func (s *Searcher) Prepare(opts domain.SearchOptions) (domain.SearchOptions, error) {
	if opts.Limit == 0 {
		opts.Limit = s.limits.Default
	}
	if s.limits.Max > 0 && opts.Limit > s.limits.Max {
		opts.Limit = s.limits.Max
	}
	if opts.Limit > domain.MaxLimit {
		opts.Limit = domain.MaxLimit
	}
	if err := opts.Validate(); err != nil {
		return domain.SearchOptions{}, err
	}
	return opts.Normalize(), nil
}

type branch struct {
	results []domain.SearchResult
	total   int
	err     error
}

// Fetch runs prepared options. With one selected type the store window is
// the page. With several, each type is asked for the prefix up to
// offset+limit and the merged list is ordered and sliced here.
func (s *Searcher) Fetch(ctx context.Context, opts domain.SearchOptions, tenant *uuid.UUID) (Outcome, error) {
	return s.FetchAfter(ctx, opts, tenant, nil)
}

// FetchAfter is Fetch for a follow-up page. Results whose key is already in
// shown are dropped and the page is the next opts.Limit unseen results of
// the merged order, so a wider ranked prefix never repeats or skips a row.
// opts.Offset should equal len(shown).
func (s *Searcher) FetchAfter(ctx context.Context, opts domain.SearchOptions, tenant *uuid.UUID, shown []domain.SearchResult) (Outcome, error) {
	started := time.Now()

	if err := opts.Validate(); err != nil {
		return Outcome{}, err
	}

	single := len(opts.Types) == 1
	perType := opts
	if !single {
		perType.Offset = 0
		perType.Limit = opts.Offset + opts.Limit
	}

	var scope []query.Predicate
	if tenant != nil {
		scope = append(scope, query.Equals(domain.TenantColumn, tenant.String()))
	}

	branches := make([]branch, len(opts.Types))
	g, gctx := errgroup.WithContext(ctx)
	for i, entityType := range opts.Types {
		g.Go(func() error {
			set, err := query.Build(entityType, perType)
			if errors.Is(err, query.ErrUnsupportedFilter) {
				return nil
			}
			if err != nil {
				return err
			}

			page, err := s.store.Query(gctx, set.With(scope...))
			if err != nil {
				s.log.WithContext(ctx).SearchBranchFailed(string(entityType), err)
				branches[i].err = err
				return nil
			}
			branches[i] = branch{results: transform.All(page.Records, entityType), total: page.Total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	var (
		merged []domain.SearchResult
		total  int
		failed int
		first  error
	)
	for _, b := range branches {
		if b.err != nil {
			failed++
			if first == nil {
				first = b.err
			}
			continue
		}
		merged = append(merged, b.results...)
		total += b.total
	}
	if failed > 0 && failed == len(branches) {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAllTypesFailed, first)
	}

	if opts.IsRelevanceSort() {
		ranking.Rank(merged, opts.Query)
	} else if !single {
		sortResults(merged, opts.SortBy, opts.SortOrder)
	}

	// A single type's store window is already the page; next counts the rows
	// it consumed even when some of them were shown before.
	next := opts.Offset + len(merged)
	start := opts.Offset
	if len(shown) > 0 {
		merged = excludeShown(merged, shown)
		start = 0
	}
	page := merged
	if !single {
		page = window(merged, start, opts.Limit)
		next = opts.Offset + len(page)
	}
	if page == nil {
		page = []domain.SearchResult{}
	}

	out := Outcome{
		Page:       page,
		TotalCount: total,
		HasMore:    next < total && next <= domain.MaxOffset,
	}
	s.log.WithContext(ctx).SearchCompleted(len(opts.Types), failed, total, len(page),
		float64(time.Since(started).Microseconds())/1000)
	return out, nil
}

func excludeShown(results, shown []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]struct{}, len(shown))
	for _, r := range shown {
		seen[r.Key()] = struct{}{}
	}
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func window(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	out := make([]domain.SearchResult, end-offset)
	copy(out, results[offset:end])
	return out
}
