package transport

import (
	"encoding/json"
	"strings"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/filters"
	"crm_search_backend/platform/validator"
)

// SearchQuery is the query string of a one-shot search. Filters arrive as a
// JSON object; types may repeat or be comma separated.
type SearchQuery struct {
	Query     string   `form:"q" validate:"max=200"`
	Types     []string `form:"types" validate:"entitytype"`
	Filters   string   `form:"filters" validate:"omitempty,json"`
	SortBy    string   `form:"sortBy" validate:"sortby"`
	SortOrder string   `form:"sortOrder" validate:"sortorder"`
	Limit     int      `form:"limit" validate:"min=0"`
	Offset    int      `form:"offset" validate:"min=0,max=10000"`
}

// Normalize expands comma separated types.
func (q *SearchQuery) Normalize() {
	var types []string
	for _, raw := range q.Types {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, part)
			}
		}
	}
	q.Types = types
}

// Options converts the query into search options.
func (q SearchQuery) Options() (domain.SearchOptions, error) {
	var filterValue domain.FilterValue
	if q.Filters != "" {
		if err := json.Unmarshal([]byte(q.Filters), &filterValue); err != nil {
			return domain.SearchOptions{}, err
		}
	}
	return domain.SearchOptions{
		Query:     q.Query,
		Types:     toEntityTypes(q.Types),
		Filters:   filterValue,
		SortBy:    domain.SortBy(q.SortBy),
		SortOrder: domain.SortOrder(q.SortOrder),
		Limit:     q.Limit,
		Offset:    q.Offset,
	}, nil
}

// SearchRequest is the body of a session search.
type SearchRequest struct {
	Query     string         `json:"query" validate:"max=200"`
	Types     []string       `json:"types" validate:"entitytype"`
	Filters   map[string]any `json:"filters"`
	SortBy    string         `json:"sortBy" validate:"sortby"`
	SortOrder string         `json:"sortOrder" validate:"sortorder"`
	Limit     int            `json:"limit" validate:"min=0"`
	Offset    int            `json:"offset" validate:"min=0,max=10000"`
}

// Options converts the request into search options.
func (r SearchRequest) Options() domain.SearchOptions {
	return domain.SearchOptions{
		Query:     r.Query,
		Types:     toEntityTypes(r.Types),
		Filters:   domain.FilterValue(r.Filters),
		SortBy:    domain.SortBy(r.SortBy),
		SortOrder: domain.SortOrder(r.SortOrder),
		Limit:     r.Limit,
		Offset:    r.Offset,
	}
}

func toEntityTypes(names []string) []domain.EntityType {
	if len(names) == 0 {
		return nil
	}
	out := make([]domain.EntityType, len(names))
	for i, n := range names {
		out[i] = domain.EntityType(n)
	}
	return out
}

// SearchResponse is a one-shot search page.
type SearchResponse struct {
	Results    []domain.SearchResult `json:"results"`
	TotalCount int                   `json:"totalCount"`
	HasMore    bool                  `json:"hasMore"`
}

// SessionResponse carries a session id and its state.
type SessionResponse struct {
	SessionID string             `json:"sessionId"`
	State     domain.SearchState `json:"state"`
}

// FiltersResponse lists filter fields per entity type.
type FiltersResponse struct {
	Entities map[domain.EntityType][]filters.FilterField `json:"entities"`
}

// EntityFiltersResponse lists the filter fields of one entity type.
type EntityFiltersResponse struct {
	Type   domain.EntityType     `json:"type"`
	Fields []filters.FilterField `json:"fields"`
}

// RegisterValidations installs the custom tags used by the DTOs above.
func RegisterValidations(val *validator.Validator) error {
	rules := map[string][]string{
		"entitytype": domain.EntityTypeNames(),
		"sortby": {
			string(domain.SortRelevance), string(domain.SortDate), string(domain.SortTitle),
			string(domain.SortStatus), string(domain.SortPriority), string(domain.SortValue),
		},
		"sortorder": {string(domain.SortAsc), string(domain.SortDesc)},
	}
	for tag, values := range rules {
		if err := val.RegisterValidation(tag, validator.OneOfStrings(values...)); err != nil {
			return err
		}
	}
	return nil
}
