package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/query"

	"github.com/DATA-DOG/go-sqlmock"
)

// passthroughConverter lets array arguments reach the mock unchanged, the way
// the pgx driver accepts them.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func mustBuild(t *testing.T, entity domain.EntityType, opts domain.SearchOptions) query.PredicateSet {
	t.Helper()
	set, err := query.Build(entity, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return set
}

func TestCompileSelectWithoutPredicates(t *testing.T) {
	store := NewPostgresStore(nil)
	stmt, args, err := store.compileSelect(mustBuild(t, domain.EntityLead, domain.SearchOptions{Limit: 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT COUNT(*) OVER() AS total_count, to_jsonb(t) AS record FROM "leads" t ORDER BY t."created_at" DESC NULLS LAST, t."id" ASC LIMIT $1 OFFSET $2`
	if stmt != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, stmt)
	}
	if len(args) != 2 || args[0] != 5 || args[1] != 0 {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestCompileWhereCoversEveryPredicateKind(t *testing.T) {
	store := NewPostgresStore(nil)
	set := mustBuild(t, domain.EntityCustomer, domain.SearchOptions{
		Query: "50%_off",
		Filters: domain.FilterValue{
			"status":     "active",
			"company":    "acme",
			"tags":       []string{"vip"},
			"valueRange": map[string]any{"min": 10},
			"dateRange":  map[string]any{"from": "2024-01-01", "to": "2024-12-31"},
		},
		SortBy:    domain.SortTitle,
		SortOrder: domain.SortAsc,
	})

	stmt, args, err := store.compileSelect(set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fragment := range []string{
		`(t."name"::text ILIKE $1 ESCAPE '\' OR t."email"::text ILIKE $1 ESCAPE '\'`,
		`t."company" ILIKE $2 ESCAPE '\'`,
		`t."created_at" >= $3 AND t."created_at" <= $4`,
		`t."status" = $5`,
		`t."tags" && $6`,
		`t."value" >= $7`,
		`ORDER BY t."name" ASC NULLS LAST`,
		`LIMIT $8 OFFSET $9`,
	} {
		if !strings.Contains(stmt, fragment) {
			t.Fatalf("expected statement to contain %q, got\n%s", fragment, stmt)
		}
	}
	if args[0] != `%50\%\_off%` {
		t.Fatalf("expected escaped like pattern, got %v", args[0])
	}
	if args[1] != "%acme%" {
		t.Fatalf("expected company pattern, got %v", args[1])
	}
	if tags, ok := args[5].([]string); !ok || len(tags) != 1 || tags[0] != "vip" {
		t.Fatalf("expected tag array arg, got %#v", args[5])
	}
}

func TestCompileRejectsUnknownIdentifiers(t *testing.T) {
	store := NewPostgresStore(nil)
	set := query.PredicateSet{Table: "users", Sort: query.Sort{Field: "created_at"}, RangeEnd: 9}
	if _, _, err := store.compileSelect(set); err == nil {
		t.Fatalf("expected error for unknown table")
	}

	set = query.PredicateSet{
		Table:      "leads",
		Predicates: []query.Predicate{query.Equals("password; DROP TABLE leads", "x")},
		Sort:       query.Sort{Field: "created_at"},
		RangeEnd:   9,
	}
	if _, _, err := store.compileSelect(set); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestPostgresStoreQuery(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresStore(db)

	set := mustBuild(t, domain.EntityDeal, domain.SearchOptions{
		Filters: domain.FilterValue{"status": "won"},
		Limit:   2,
	})

	rows := sqlmock.NewRows([]string{"total_count", "record"}).
		AddRow(int64(7), []byte(`{"id":"d-1","title":"Roof","value":1200.5,"status":"won"}`)).
		AddRow(int64(7), []byte(`{"id":"d-2","title":"Heat pump","value":"980","status":"won"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "deals" t WHERE t."status" = $1 ORDER BY`)).
		WithArgs("won", 2, 0).
		WillReturnRows(rows)

	page, err := store.Query(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 7 {
		t.Fatalf("expected total 7, got %d", page.Total)
	}
	if len(page.Records) != 2 || page.Records[0]["id"] != "d-1" {
		t.Fatalf("unexpected records %v", page.Records)
	}
}

func TestPostgresStoreCountsPastTheEnd(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresStore(db)

	set := mustBuild(t, domain.EntityTask, domain.SearchOptions{Limit: 10, Offset: 50})

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "tasks" t ORDER BY`)).
		WithArgs(10, 50).
		WillReturnRows(sqlmock.NewRows([]string{"total_count", "record"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "tasks" t`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	page, err := store.Query(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 12 || len(page.Records) != 0 {
		t.Fatalf("expected empty page with total 12, got %d records and total %d", len(page.Records), page.Total)
	}
}

func TestPostgresStoreWrapsQueryErrors(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresStore(db)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "leads" t`)).WillReturnError(boom)

	_, err := store.Query(context.Background(), mustBuild(t, domain.EntityLead, domain.SearchOptions{}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestPostgresStoreWideWindowDoesNotPreallocate(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresStore(db)

	set := mustBuild(t, domain.EntityLead, domain.SearchOptions{})
	set.RangeEnd = (1 << 46) + 19

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "leads" t ORDER BY`)).
		WithArgs((1<<46)+20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"total_count", "record"}).
			AddRow(int64(1), []byte(`{"id":"l-1","name":"Acme"}`)))

	page, err := store.Query(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Records) != 1 || page.Total != 1 {
		t.Fatalf("expected one record, got %d (total %d)", len(page.Records), page.Total)
	}
}
