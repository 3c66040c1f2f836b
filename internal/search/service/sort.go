package service

import (
	"sort"
	"strings"

	"crm_search_backend/internal/search/domain"
)

// sortResults orders a merged multi-type list by the same key each store
// sorted its own rows by. Missing keys sort last in either direction.
func sortResults(results []domain.SearchResult, sortBy domain.SortBy, order domain.SortOrder) {
	ascending := order == domain.SortAsc
	key := sortKey(sortBy)

	sort.SliceStable(results, func(i, j int) bool {
		a, aok := key(results[i])
		b, bok := key(results[j])
		switch {
		case !aok:
			return false
		case !bok:
			return true
		}
		c := a.compare(b)
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

type sortValue struct {
	text   string
	number float64
	isNum  bool
}

func (v sortValue) compare(o sortValue) int {
	if v.isNum && o.isNum {
		switch {
		case v.number < o.number:
			return -1
		case v.number > o.number:
			return 1
		}
		return 0
	}
	return strings.Compare(v.text, o.text)
}

func sortKey(sortBy domain.SortBy) func(domain.SearchResult) (sortValue, bool) {
	text := func(s string) (sortValue, bool) {
		return sortValue{text: s}, s != ""
	}
	switch sortBy {
	case domain.SortTitle:
		return func(r domain.SearchResult) (sortValue, bool) { return text(r.Title) }
	case domain.SortStatus:
		return func(r domain.SearchResult) (sortValue, bool) { return text(r.Status) }
	case domain.SortPriority:
		return func(r domain.SearchResult) (sortValue, bool) { return text(r.Priority) }
	case domain.SortValue:
		return func(r domain.SearchResult) (sortValue, bool) {
			if r.Value == nil {
				return sortValue{}, false
			}
			return sortValue{number: *r.Value, isNum: true}, true
		}
	default:
		return createdAt
	}
}

// createdAt reads the creation time from the raw record, since Date may hold
// a task's due date.
func createdAt(r domain.SearchResult) (sortValue, bool) {
	raw := r.Date
	if s, ok := r.Metadata["created_at"].(string); ok {
		raw = s
	}
	t, ok := domain.ParseTimestamp(raw)
	if !ok {
		return sortValue{}, false
	}
	return sortValue{number: float64(t.UnixNano()), isNum: true}, true
}
