package db

import "testing"

func TestPgxMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/crm":   "pgx5://u:p@localhost:5432/crm",
		"postgresql://u:p@localhost:5432/crm": "pgx5://u:p@localhost:5432/crm",
		"pgx5://already":                      "pgx5://already",
	}
	for in, want := range tests {
		if got := pgxMigrateURL(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}
