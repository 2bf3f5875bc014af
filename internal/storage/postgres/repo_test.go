package postgres

import (
	"strings"
	"testing"

	"bidsevents/internal/storage"
)

func TestBuildInsertSQL_PlaceholdersAndConflict(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("bids_files",
		[]string{"dataset", "file_key"},
		[][]any{{"ds", "sub-01"}, {"ds", "sub-02"}},
		[]string{"dataset", "file_key"},
	)

	want := `INSERT INTO "bids_files" ("dataset", "file_key") VALUES ($1, $2), ($3, $4) ON CONFLICT ("dataset", "file_key") DO NOTHING;`
	if q != want {
		t.Fatalf("sql mismatch\n got: %s\nwant: %s", q, want)
	}
	if len(args) != 4 || args[2] != "ds" || args[3] != "sub-02" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildInsertSQL_NoDedupe(t *testing.T) {
	t.Parallel()

	q, _ := buildInsertSQL("t", []string{"a"}, [][]any{{1}}, nil)
	if strings.Contains(q, "ON CONFLICT") {
		t.Fatalf("unexpected ON CONFLICT without dedupe columns: %s", q)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	stmts := buildCreateSQL(storage.ColumnValuesSpec)
	if len(stmts) != 1 {
		t.Fatalf("expected a single statement, got %d", len(stmts))
	}
	ddl := stmts[0]
	if !strings.HasPrefix(ddl, `CREATE TABLE IF NOT EXISTS "bids_column_values"`) {
		t.Fatalf("missing CREATE TABLE: %s", ddl)
	}
	if !strings.Contains(ddl, `"total_count" BIGINT NOT NULL`) || !strings.Contains(ddl, `"value" TEXT NOT NULL`) {
		t.Fatalf("unexpected column definitions: %s", ddl)
	}
	if !strings.Contains(ddl, `CONSTRAINT "uq_bids_column_values" UNIQUE ("dataset", "column_name", "value")`) {
		t.Fatalf("missing UNIQUE constraint: %s", ddl)
	}

	stmts = buildCreateSQL(storage.EntitiesSpec)
	if len(stmts) != 2 || !strings.Contains(stmts[1], `ON "bids_entities" ("dataset", "entity", "value")`) {
		t.Fatalf("missing lookup index: %v", stmts)
	}
}

func TestDialect_FindFilesSQL(t *testing.T) {
	t.Parallel()

	q := dialect.FindFilesSQL()
	for _, frag := range []string{`FROM "bids_files" f JOIN "bids_entities" e`, `f."dataset" = $1`, `e."entity" = $2`, `e."value" = $3`, `ORDER BY f."file_key"`} {
		if !strings.Contains(q, frag) {
			t.Fatalf("query missing %q: %s", frag, q)
		}
	}
}
