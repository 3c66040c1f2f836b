// Package repository implements the record store gateway: a Postgres store,
// an in-memory store, and the cache and circuit breaker decorators around them.
package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/query"

	"github.com/jackc/pgx/v5"
)

// Queryer is the subset of *sql.DB the Postgres store needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore compiles predicate sets to SQL over the CRM tables.
type PostgresStore struct {
	db      Queryer
	tables  map[string]struct{}
	columns map[string]struct{}
}

var _ ports.RecordStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store. Only tables and columns declared in the
// entity registry may appear in generated SQL.
func NewPostgresStore(db Queryer) *PostgresStore {
	s := &PostgresStore{
		db:      db,
		tables:  make(map[string]struct{}),
		columns: map[string]struct{}{"id": {}, domain.TenantColumn: {}},
	}
	for _, t := range domain.AllEntityTypes() {
		spec, _ := domain.TableFor(t)
		s.tables[spec.Table] = struct{}{}
		for _, col := range append(spec.TextFields,
			spec.TitleColumn(), spec.CreatedAtColumn, spec.StatusColumn, spec.PriorityColumn,
			spec.AssignedToColumn, spec.TagsColumn, spec.ValueColumn, spec.CompanyColumn,
		) {
			if col != "" {
				s.columns[col] = struct{}{}
			}
		}
	}
	return s
}

// Query implements ports.RecordStore.
func (s *PostgresStore) Query(ctx context.Context, set query.PredicateSet) (ports.Page, error) {
	stmt, args, err := s.compileSelect(set)
	if err != nil {
		return ports.Page{}, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return ports.Page{}, fmt.Errorf("query %s: %w", set.Table, err)
	}
	defer rows.Close()

	page := ports.Page{Records: []domain.Record{}}
	for rows.Next() {
		var (
			total int64
			raw   []byte
		)
		if err := rows.Scan(&total, &raw); err != nil {
			return ports.Page{}, fmt.Errorf("scan %s: %w", set.Table, err)
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return ports.Page{}, fmt.Errorf("decode %s record: %w", set.Table, err)
		}
		page.Total = int(total)
		page.Records = append(page.Records, record)
	}
	if err := rows.Err(); err != nil {
		return ports.Page{}, fmt.Errorf("iterate %s: %w", set.Table, err)
	}

	// The window function yields no count when the window is past the end.
	if len(page.Records) == 0 && set.RangeStart > 0 {
		total, err := s.count(ctx, set)
		if err != nil {
			return ports.Page{}, err
		}
		page.Total = total
	}

	return page, nil
}

func (s *PostgresStore) count(ctx context.Context, set query.PredicateSet) (int, error) {
	stmt, args, err := s.compileCount(set)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", set.Table, err)
	}
	return int(total), nil
}

func (s *PostgresStore) compileSelect(set query.PredicateSet) (string, []any, error) {
	table, err := s.table(set.Table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := s.compileWhere(set.Predicates)
	if err != nil {
		return "", nil, err
	}
	sortCol, err := s.column(set.Sort.Field)
	if err != nil {
		return "", nil, err
	}

	direction := "DESC"
	if set.Sort.Ascending {
		direction = "ASC"
	}

	limit := set.Limit()
	if limit < 0 {
		limit = 0
	}
	args = append(args, limit, set.RangeStart)

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) OVER() AS total_count, to_jsonb(t) AS record FROM ")
	b.WriteString(table)
	b.WriteString(" t")
	b.WriteString(where)
	fmt.Fprintf(&b, " ORDER BY %s %s NULLS LAST, t.\"id\" ASC", sortCol, direction)
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args, nil
}

func (s *PostgresStore) compileCount(set query.PredicateSet) (string, []any, error) {
	table, err := s.table(set.Table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := s.compileWhere(set.Predicates)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + table + " t" + where, args, nil
}

func (s *PostgresStore) compileWhere(preds []query.Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}

	args := make([]any, 0, len(preds))
	nextArg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	clauses := make([]string, 0, len(preds))
	for _, p := range preds {
		switch p.Kind {
		case query.KindEquals:
			col, err := s.column(p.Field)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, col+" = "+nextArg(p.Text))

		case query.KindContains:
			col, err := s.column(p.Field)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, col+` ILIKE `+nextArg(likePattern(p.Text))+` ESCAPE '\'`)

		case query.KindAnyContains:
			if len(p.Fields) == 0 {
				continue
			}
			placeholder := nextArg(likePattern(p.Text))
			ors := make([]string, 0, len(p.Fields))
			for _, field := range p.Fields {
				col, err := s.column(field)
				if err != nil {
					return "", nil, err
				}
				ors = append(ors, col+"::text ILIKE "+placeholder+` ESCAPE '\'`)
			}
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")

		case query.KindNumberRange:
			col, err := s.column(p.Field)
			if err != nil {
				return "", nil, err
			}
			if p.Min != nil {
				clauses = append(clauses, col+" >= "+nextArg(*p.Min))
			}
			if p.Max != nil {
				clauses = append(clauses, col+" <= "+nextArg(*p.Max))
			}

		case query.KindTimeRange:
			col, err := s.column(p.Field)
			if err != nil {
				return "", nil, err
			}
			if p.From != nil {
				clauses = append(clauses, col+" >= "+nextArg(*p.From))
			}
			if p.To != nil {
				clauses = append(clauses, col+" <= "+nextArg(*p.To))
			}

		case query.KindOverlaps:
			col, err := s.column(p.Field)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, col+" && "+nextArg(p.Values))

		default:
			return "", nil, fmt.Errorf("unsupported predicate kind %s", p.Kind)
		}
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *PostgresStore) table(name string) (string, error) {
	if _, ok := s.tables[name]; !ok {
		return "", fmt.Errorf("table %q is not searchable", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func (s *PostgresStore) column(name string) (string, error) {
	if _, ok := s.columns[name]; !ok {
		return "", fmt.Errorf("column %q is not searchable", name)
	}
	return "t." + pgx.Identifier{name}.Sanitize(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func decodeRecord(raw []byte) (domain.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var record domain.Record
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		record = domain.Record{}
	}
	return record, nil
}
