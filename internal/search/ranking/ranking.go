// Package ranking scores search results against a free-text query.
package ranking

import (
	"sort"
	"strings"

	"crm_search_backend/internal/search/domain"
)

// Weights applied per matching field.
const (
	weightTitle       = 10
	weightTitlePrefix = 5
	weightSubtitle    = 5
	weightDescription = 3
	weightTag         = 2
	weightAttribute   = 1
)

// Score returns the heuristic relevance of r for query. Every result scores 1
// for an empty query.
func Score(r domain.SearchResult, query string) float64 {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return 1
	}

	var score float64
	title := strings.ToLower(r.Title)
	if strings.Contains(title, term) {
		score += weightTitle
		if strings.HasPrefix(title, term) {
			score += weightTitlePrefix
		}
	}
	if strings.Contains(strings.ToLower(r.Subtitle), term) {
		score += weightSubtitle
	}
	if strings.Contains(strings.ToLower(r.Description), term) {
		score += weightDescription
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			score += weightTag
			break
		}
	}
	if strings.Contains(strings.ToLower(r.Status), term) || strings.Contains(strings.ToLower(r.Priority), term) {
		score += weightAttribute
	}
	return score
}

// Rank sets every result's score and orders results by descending score.
// Equal scores keep their incoming order.
func Rank(results []domain.SearchResult, query string) {
	for i := range results {
		s := Score(results[i], query)
		results[i].RelevanceScore = &s
	}
	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].RelevanceScore > *results[j].RelevanceScore
	})
}
