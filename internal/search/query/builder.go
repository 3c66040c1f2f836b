package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"crm_search_backend/internal/search/domain"
)

// Filter keys understood by the builder. Any other key is ignored.
const (
	FilterStatus     = "status"
	FilterPriority   = "priority"
	FilterAssignedTo = "assignedTo"
	FilterDateRange  = "dateRange"
	FilterValueRange = "valueRange"
	FilterTags       = "tags"
	FilterCompany    = "company"
)

// ErrUnsupportedFilter is returned when a filter is applied to an entity type
// that has no column to evaluate it against. No record of that type can
// satisfy the filter.
var ErrUnsupportedFilter = errors.New("filter not supported by entity type")

// Build compiles opts into the predicate set for one entity type.
func Build(entityType domain.EntityType, opts domain.SearchOptions) (PredicateSet, error) {
	spec, ok := domain.TableFor(entityType)
	if !ok {
		return PredicateSet{}, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidOptions, entityType)
	}

	set := PredicateSet{
		Entity:     entityType,
		Table:      spec.Table,
		Predicates: make([]Predicate, 0, len(opts.Filters)+1),
	}

	if term := normalizeTerm(opts.Query); term != "" {
		set.Predicates = append(set.Predicates, Predicate{
			Kind:   KindAnyContains,
			Fields: spec.TextFields,
			Text:   term,
		})
	}

	filterPreds, err := buildFilters(entityType, spec, opts.Filters)
	if err != nil {
		return PredicateSet{}, err
	}
	set.Predicates = append(set.Predicates, filterPreds...)

	set.Sort = buildSort(spec, opts.SortBy, opts.SortOrder)

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	// Multi-type prefixes ask for offset+limit rows from offset zero.
	if offset > domain.MaxOffset || limit > domain.MaxOffset+domain.MaxLimit {
		return PredicateSet{}, fmt.Errorf("%w: window %d+%d is too large", domain.ErrInvalidOptions, offset, limit)
	}
	set.RangeStart = offset
	set.RangeEnd = offset + limit - 1

	return set, nil
}

func normalizeTerm(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func buildFilters(entityType domain.EntityType, spec domain.TableSpec, filters domain.FilterValue) ([]Predicate, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	// Stable order keeps generated SQL and cache keys deterministic.
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	unsupported := func(key string) error {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedFilter, key, entityType)
	}

	for _, key := range keys {
		raw := filters[key]
		switch key {
		case FilterStatus, FilterPriority, FilterAssignedTo:
			value, ok := stringValue(raw)
			if !ok {
				continue
			}
			column := equalityColumn(spec, key)
			if column == "" {
				return nil, unsupported(key)
			}
			preds = append(preds, Equals(column, value))

		case FilterDateRange:
			from, to := timeBounds(raw)
			if from == nil && to == nil {
				continue
			}
			preds = append(preds, Predicate{Kind: KindTimeRange, Field: spec.CreatedAtColumn, From: from, To: to})

		case FilterValueRange:
			lo, hi := numberBounds(raw)
			if lo == nil && hi == nil {
				continue
			}
			if spec.ValueColumn == "" {
				return nil, unsupported(key)
			}
			preds = append(preds, Predicate{Kind: KindNumberRange, Field: spec.ValueColumn, Min: lo, Max: hi})

		case FilterTags:
			tags := stringSlice(raw)
			if len(tags) == 0 {
				continue
			}
			if spec.TagsColumn == "" {
				return nil, unsupported(key)
			}
			preds = append(preds, Predicate{Kind: KindOverlaps, Field: spec.TagsColumn, Values: tags})

		case FilterCompany:
			value, ok := stringValue(raw)
			if !ok {
				continue
			}
			if spec.CompanyColumn == "" {
				return nil, unsupported(key)
			}
			preds = append(preds, Predicate{Kind: KindContains, Field: spec.CompanyColumn, Text: strings.ToLower(value)})
		}
	}
	return preds, nil
}

func equalityColumn(spec domain.TableSpec, key string) string {
	switch key {
	case FilterStatus:
		return spec.StatusColumn
	case FilterPriority:
		return spec.PriorityColumn
	case FilterAssignedTo:
		return spec.AssignedToColumn
	}
	return ""
}

// buildSort maps sortBy onto a column. Relevance (and anything the entity
// cannot sort by) falls back to newest-first, the pre-sort relevance ranking
// is applied on top of.
func buildSort(spec domain.TableSpec, sortBy domain.SortBy, order domain.SortOrder) Sort {
	fallback := Sort{Field: spec.CreatedAtColumn, Ascending: false}
	ascending := order == domain.SortAsc

	var column string
	switch sortBy {
	case domain.SortDate:
		column = spec.CreatedAtColumn
	case domain.SortTitle:
		column = spec.TitleColumn()
	case domain.SortStatus:
		column = spec.StatusColumn
	case domain.SortPriority:
		column = spec.PriorityColumn
	case domain.SortValue:
		column = spec.ValueColumn
	default:
		return fallback
	}
	if column == "" {
		return fallback
	}
	return Sort{Field: column, Ascending: ascending}
}
