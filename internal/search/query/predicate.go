// Package query compiles search options into store-neutral predicate sets,
// one per entity type.
package query

import (
	"time"

	"crm_search_backend/internal/search/domain"
)

// Kind enumerates the predicate shapes a record store must support.
type Kind int

const (
	// KindEquals matches Field == Text.
	KindEquals Kind = iota + 1
	// KindContains matches a case-insensitive substring Text in Field.
	KindContains
	// KindAnyContains matches Text as a substring of any of Fields.
	KindAnyContains
	// KindNumberRange matches Min <= Field <= Max; a nil bound is open.
	KindNumberRange
	// KindTimeRange matches From <= Field <= To; a nil bound is open.
	KindTimeRange
	// KindOverlaps matches when the array Field shares an element with Values.
	KindOverlaps
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindContains:
		return "contains"
	case KindAnyContains:
		return "any_contains"
	case KindNumberRange:
		return "number_range"
	case KindTimeRange:
		return "time_range"
	case KindOverlaps:
		return "overlaps"
	default:
		return "unknown"
	}
}

// Predicate is one condition on a record. Which fields are set depends on Kind.
type Predicate struct {
	Kind   Kind       `json:"kind"`
	Field  string     `json:"field,omitempty"`
	Fields []string   `json:"fields,omitempty"`
	Text   string     `json:"text,omitempty"`
	Values []string   `json:"values,omitempty"`
	Min    *float64   `json:"min,omitempty"`
	Max    *float64   `json:"max,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
}

// Equals builds a KindEquals predicate.
func Equals(field, value string) Predicate {
	return Predicate{Kind: KindEquals, Field: field, Text: value}
}

// Sort is a single-field ordering.
type Sort struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// PredicateSet is everything a record store needs to answer one entity
// type's share of a search: AND-ed predicates, one sort, and an inclusive
// zero-based [RangeStart, RangeEnd] window.
type PredicateSet struct {
	Entity     domain.EntityType `json:"entity"`
	Table      string            `json:"table"`
	Predicates []Predicate       `json:"predicates"`
	Sort       Sort              `json:"sort"`
	RangeStart int               `json:"rangeStart"`
	RangeEnd   int               `json:"rangeEnd"`
}

// Limit is the number of rows the window covers.
func (p PredicateSet) Limit() int {
	return p.RangeEnd - p.RangeStart + 1
}

// With returns a copy of p with extra predicates appended.
func (p PredicateSet) With(extra ...Predicate) PredicateSet {
	out := p
	out.Predicates = make([]Predicate, 0, len(p.Predicates)+len(extra))
	out.Predicates = append(out.Predicates, p.Predicates...)
	out.Predicates = append(out.Predicates, extra...)
	return out
}
