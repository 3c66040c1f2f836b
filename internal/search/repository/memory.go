package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"
)

// MemoryStore holds tables of records in process and evaluates predicate sets
// with the same semantics as PostgresStore. Records are never mutated after
// insertion.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]domain.Record
}

var _ ports.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]domain.Record)}
}

// Insert appends records to table.
func (s *MemoryStore) Insert(table string, records ...domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], records...)
}

// LoadSeedFile reads a JSON object of table name to record array, e.g.
// {"leads": [{"id": "..."}]}. Unknown tables are rejected.
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return s.LoadSeed(data)
}

// LoadSeed loads a seed document already in memory.
func (s *MemoryStore) LoadSeed(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var seed map[string][]domain.Record
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	known := make(map[string]struct{})
	for _, t := range domain.AllEntityTypes() {
		spec, _ := domain.TableFor(t)
		known[spec.Table] = struct{}{}
	}
	for table, records := range seed {
		if _, ok := known[table]; !ok {
			return fmt.Errorf("seed: unknown table %q", table)
		}
		s.Insert(table, records...)
	}
	return nil
}

// Query implements ports.RecordStore.
func (s *MemoryStore) Query(ctx context.Context, set query.PredicateSet) (ports.Page, error) {
	if err := ctx.Err(); err != nil {
		return ports.Page{}, err
	}

	s.mu.RLock()
	source := s.tables[set.Table]
	matched := make([]domain.Record, 0, len(source))
	for _, r := range source {
		if matchesAll(r, set.Predicates) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sortRecords(matched, set.Sort)

	page := ports.Page{Total: len(matched), Records: []domain.Record{}}
	start := set.RangeStart
	end := set.RangeEnd + 1
	if start < 0 {
		start = 0
	}
	if end > len(matched) {
		end = len(matched)
	}
	if start < end {
		page.Records = append(page.Records, matched[start:end]...)
	}
	return page, nil
}

func matchesAll(r domain.Record, preds []query.Predicate) bool {
	for _, p := range preds {
		if !matches(r, p) {
			return false
		}
	}
	return true
}

func matches(r domain.Record, p query.Predicate) bool {
	switch p.Kind {
	case query.KindEquals:
		v, ok := scalarText(r[p.Field])
		return ok && v == p.Text
	case query.KindContains:
		return containsFold(r[p.Field], p.Text)
	case query.KindAnyContains:
		for _, field := range p.Fields {
			if containsFold(r[field], p.Text) {
				return true
			}
		}
		return len(p.Fields) == 0
	case query.KindNumberRange:
		n, ok := numeric(r[p.Field])
		if !ok {
			return false
		}
		if p.Min != nil && n < *p.Min {
			return false
		}
		if p.Max != nil && n > *p.Max {
			return false
		}
		return true
	case query.KindTimeRange:
		t, ok := instant(r[p.Field])
		if !ok {
			return false
		}
		if p.From != nil && t.Before(*p.From) {
			return false
		}
		if p.To != nil && t.After(*p.To) {
			return false
		}
		return true
	case query.KindOverlaps:
		have := stringList(r[p.Field])
		for _, want := range p.Values {
			for _, h := range have {
				if h == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

func containsFold(v any, term string) bool {
	s, ok := scalarText(v)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

func scalarText(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case float64, int, int64, bool:
		return fmt.Sprint(typed), true
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano), true
	}
	return "", false
}

func numeric(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	}
	return 0, false
}

func instant(v any) (time.Time, bool) {
	switch typed := v.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case string:
		return domain.ParseTimestamp(typed)
	}
	return time.Time{}, false
}

func stringList(v any) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// sortRecords orders by one field with missing values last, like
// ORDER BY ... NULLS LAST. Ties keep insertion order.
func sortRecords(records []domain.Record, order query.Sort) {
	if order.Field == "" {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, aok := records[i][order.Field]
		b, bok := records[j][order.Field]
		aok = aok && a != nil
		bok = bok && b != nil
		switch {
		case !aok && !bok:
			return false
		case !aok:
			return false
		case !bok:
			return true
		}
		c := compareValues(a, b)
		if order.Ascending {
			return c < 0
		}
		return c > 0
	})
}

func compareValues(a, b any) int {
	if an, ok := numeric(a); ok {
		if bn, ok := numeric(b); ok {
			return compareOrdered(an, bn)
		}
	}
	if at, ok := instant(a); ok {
		if bt, ok := instant(b); ok {
			return at.Compare(bt)
		}
	}
	as, _ := scalarText(a)
	bs, _ := scalarText(b)
	return strings.Compare(as, bs)
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
