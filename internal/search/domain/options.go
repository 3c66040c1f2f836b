package domain

import (
	"errors"
	"fmt"
)

// SortBy names the ordering applied to merged results.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortTitle     SortBy = "title"
	SortStatus    SortBy = "status"
	SortPriority  SortBy = "priority"
	SortValue     SortBy = "value"
)

// SortOrder is the direction of a field sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DefaultLimit is the page size used when a request does not set one.
const DefaultLimit = 20

// MaxLimit and MaxOffset bound one page window. A multi-type search asks
// every type for offset+limit rows, so both have to stay small.
const (
	MaxLimit  = 1000
	MaxOffset = 10000
)

// FilterValue maps a filter field key to its raw value. Accepted shapes are
// string, []string, {from,to}, {min,max}, number and bool; nil and empty
// values mean "not applied".
type FilterValue map[string]any

// SearchOptions is one search request.
type SearchOptions struct {
	Query     string       `json:"query,omitempty"`
	Types     []EntityType `json:"types,omitempty"`
	Filters   FilterValue  `json:"filters,omitempty"`
	SortBy    SortBy       `json:"sortBy,omitempty"`
	SortOrder SortOrder    `json:"sortOrder,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}

// ErrInvalidOptions marks malformed search options.
var ErrInvalidOptions = errors.New("invalid search options")

// IsRelevanceSort reports whether results are ordered by relevance score.
func (o SearchOptions) IsRelevanceSort() bool {
	return o.SortBy == "" || o.SortBy == SortRelevance
}

// Clone returns a copy that shares no slices or maps with o.
func (o SearchOptions) Clone() SearchOptions {
	out := o
	if o.Types != nil {
		out.Types = append([]EntityType(nil), o.Types...)
	}
	if o.Filters != nil {
		out.Filters = make(FilterValue, len(o.Filters))
		for k, v := range o.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// Normalize fills defaults: every entity type, relevance sort and
// DefaultLimit. Duplicate types are dropped, first occurrence wins.
func (o SearchOptions) Normalize() SearchOptions {
	out := o.Clone()
	if len(out.Types) == 0 {
		out.Types = AllEntityTypes()
	} else {
		seen := make(map[EntityType]struct{}, len(out.Types))
		types := out.Types[:0]
		for _, t := range out.Types {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			types = append(types, t)
		}
		out.Types = types
	}
	if out.SortBy == "" {
		out.SortBy = SortRelevance
	}
	if out.Limit == 0 {
		out.Limit = DefaultLimit
	}
	return out
}

// Validate rejects options that no search can run with.
func (o SearchOptions) Validate() error {
	for _, t := range o.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown entity type %q", ErrInvalidOptions, t)
		}
	}
	switch o.SortBy {
	case "", SortRelevance, SortDate, SortTitle, SortStatus, SortPriority, SortValue:
	default:
		return fmt.Errorf("%w: unknown sortBy %q", ErrInvalidOptions, o.SortBy)
	}
	switch o.SortOrder {
	case "", SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unknown sortOrder %q", ErrInvalidOptions, o.SortOrder)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidOptions)
	}
	if o.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must not exceed %d", ErrInvalidOptions, MaxLimit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidOptions)
	}
	if o.Offset > MaxOffset {
		return fmt.Errorf("%w: offset must not exceed %d", ErrInvalidOptions, MaxOffset)
	}
	return nil
}
