package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/protocol/query/transform"
)

var testBudget = transform.ScanBudget{Initial: 1 << 10, Max: 1 << 20}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(64, testBudget)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipeline_DML(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		sql    string
		params []interface{}
	}{
		{
			name:   "insert ignore with literals",
			input:  "INSERT IGNORE INTO users (name, bio) VALUES ('bob', 'it\\'s me');",
			sql:    "INSERT OR IGNORE INTO users (name, bio) VALUES (?, ?)",
			params: []interface{}{"bob", "it's me"},
		},
		{
			name:   "select with limit offset and hints",
			input:  "SELECT SQL_NO_CACHE * FROM posts FORCE INDEX (idx_date) WHERE status = 'publish' LIMIT 10, 5",
			sql:    "SELECT * FROM posts WHERE status = ? LIMIT 5 OFFSET 10",
			params: []interface{}{"publish"},
		},
		{
			name:   "literal that looks like a rule is left alone",
			input:  "UPDATE t SET note = 'LIMIT 1, 2 FOR UPDATE' WHERE id = 3",
			sql:    "UPDATE t SET note = ? WHERE id = 3",
			params: []interface{}{"LIMIT 1, 2 FOR UPDATE"},
		},
		{
			name:  "replace into",
			input: "REPLACE INTO kv VALUES (1, 2)",
			sql:   "INSERT OR REPLACE INTO kv VALUES (1, 2)",
		},
		{
			name:  "truncate",
			input: "TRUNCATE TABLE logs",
			sql:   "DELETE FROM logs",
		},
		{
			name:  "optimize",
			input: "OPTIMIZE TABLE logs",
			sql:   "VACUUM",
		},
		{
			name:  "start transaction",
			input: "START TRANSACTION WITH CONSISTENT SNAPSHOT",
			sql:   "BEGIN",
		},
	}

	p := newTestPipeline(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext(tt.input)
			if err := p.Process(ctx); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if len(ctx.Statements) != 1 {
				t.Fatalf("got %d statements, want 1", len(ctx.Statements))
			}
			got := ctx.Statements[0]
			if got.SQL != tt.sql {
				t.Errorf("\nInput:    %s\nExpected: %s\nGot:      %s", tt.input, tt.sql, got.SQL)
			}
			if !reflect.DeepEqual(got.Params, tt.params) {
				t.Errorf("params = %#v, want %#v", got.Params, tt.params)
			}
		})
	}
}

func TestPipeline_CacheSharedAcrossLiterals(t *testing.T) {
	p := newTestPipeline(t)

	first := NewContext("SELECT * FROM t WHERE a = 'x' LIMIT 1, 2")
	if err := p.Process(first); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.WasCached {
		t.Error("first statement should not be cached")
	}
	if len(first.Transformations) != 1 || first.Transformations[0].Rule != "Limit" {
		t.Errorf("transformations = %+v", first.Transformations)
	}

	second := NewContext("SELECT * FROM t WHERE a = 'y' LIMIT 1, 2")
	if err := p.Process(second); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !second.WasCached {
		t.Error("second statement should hit the cache")
	}
	if second.Statements[0].Params[0] != "y" {
		t.Errorf("params = %v", second.Statements[0].Params)
	}
}

func TestPipeline_CalcFoundRows(t *testing.T) {
	p := newTestPipeline(t)
	ctx := NewContext("SELECT SQL_CALC_FOUND_ROWS id FROM posts WHERE type = 'post' ORDER BY id LIMIT 0, 10")
	if err := p.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !ctx.CalcFoundRows {
		t.Fatal("CalcFoundRows not set")
	}

	count := CountQuery(ctx.Statements[0])
	want := "SELECT COUNT(*) FROM (SELECT id FROM posts WHERE type = ? ORDER BY id)"
	if count.SQL != want {
		t.Errorf("count SQL = %q, want %q", count.SQL, want)
	}
	if !reflect.DeepEqual(count.Params, []interface{}{"post"}) {
		t.Errorf("count params = %v", count.Params)
	}
}

func TestCountQuery_KeepsPlaceholderLimit(t *testing.T) {
	stmt := transform.TranspiledStatement{SQL: "SELECT a FROM t LIMIT ?", Params: []interface{}{5}}
	got := CountQuery(stmt)
	if got.SQL != "SELECT COUNT(*) FROM (SELECT a FROM t LIMIT ?)" {
		t.Errorf("SQL = %q", got.SQL)
	}
	if len(got.Params) != 1 {
		t.Errorf("params = %v", got.Params)
	}
}

func TestPipeline_Create(t *testing.T) {
	p := newTestPipeline(t)
	ctx := NewContext("CREATE TABLE `notes` (`id` int NOT NULL AUTO_INCREMENT, `body` varchar(20) DEFAULT 'it\\'s', PRIMARY KEY (`id`), KEY `idx_body` (`body`)) ENGINE=InnoDB")
	if err := p.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ctx.Kind != common.StatementCreate {
		t.Fatalf("kind = %s", ctx.Kind)
	}
	if ctx.Rewrite == nil || len(ctx.Statements) != 2 {
		t.Fatalf("statements = %+v", ctx.Statements)
	}
	if got := ctx.Statements[0].SQL; !containsAll(got, "CREATE TABLE notes", "INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT", "'it''s'") {
		t.Errorf("create = %q", got)
	}
	if got := ctx.Statements[1].SQL; got != "CREATE INDEX IF NOT EXISTS notes__idx_body ON notes (body)" {
		t.Errorf("index = %q", got)
	}
}

func TestPipeline_CreateView(t *testing.T) {
	p := newTestPipeline(t)
	ctx := NewContext("CREATE VIEW v AS SELECT 1")
	if err := p.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ctx.Rewrite != nil || len(ctx.Statements) != 1 || ctx.Statements[0].SQL != "CREATE VIEW v AS SELECT 1" {
		t.Errorf("statements = %+v", ctx.Statements)
	}
}

func TestPipeline_DropTables(t *testing.T) {
	p := newTestPipeline(t)
	ctx := NewContext("DROP TABLE IF EXISTS `a`, shop.b CASCADE;")
	if err := p.Process(ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []transform.TranspiledStatement{
		{SQL: "DROP TABLE IF EXISTS a"},
		{SQL: "DROP TABLE IF EXISTS b"},
	}
	if !reflect.DeepEqual(ctx.Statements, want) {
		t.Errorf("statements = %+v, want %+v", ctx.Statements, want)
	}
}

func TestPipeline_MetadataKindsHaveNoStatements(t *testing.T) {
	p := newTestPipeline(t)
	for _, sql := range []string{
		"ALTER TABLE t ADD COLUMN b INT",
		"SHOW TABLES",
		"DESCRIBE t",
		"SET NAMES utf8",
		"SELECT FOUND_ROWS()",
		"CHECK TABLE t",
	} {
		ctx := NewContext(sql)
		if err := p.Process(ctx); err != nil {
			t.Fatalf("Process(%q): %v", sql, err)
		}
		if len(ctx.Statements) != 0 {
			t.Errorf("Process(%q) produced %+v", sql, ctx.Statements)
		}
	}
}

func TestPipeline_QueryTooLarge(t *testing.T) {
	p, err := NewPipeline(8, transform.ScanBudget{Initial: 8, Max: 16})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	ctx := NewContext("INSERT INTO t VALUES ('0123456789012345678901234567890')")
	if err := p.Process(ctx); !errors.Is(err, transform.ErrQueryTooLarge) {
		t.Errorf("err = %v, want ErrQueryTooLarge", err)
	}
}

type mapSchema map[string]*transform.TableSchema

func (m mapSchema) ReadTableSchema(_ context.Context, table string) (*transform.TableSchema, error) {
	return m[table], nil
}

func TestPipeline_RewriteAlter(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.RewriteAlter(context.Background(), "ALTER TABLE t ADD COLUMN note varchar(10) DEFAULT 'a\\'b', ADD INDEX idx_note (note);", mapSchema{})
	if err != nil {
		t.Fatalf("RewriteAlter: %v", err)
	}
	if len(result.Statements) != 1 || result.Statements[0] != "ALTER TABLE t ADD COLUMN note TEXT DEFAULT 'a''b'" {
		t.Errorf("statements = %q", result.Statements)
	}
	if result.Recursion == "" {
		t.Fatal("expected remaining clauses")
	}

	next, err := p.ContinueAlter(context.Background(), result.Recursion, mapSchema{})
	if err != nil {
		t.Fatalf("ContinueAlter: %v", err)
	}
	if len(next.Statements) != 1 || next.Statements[0] != "CREATE INDEX IF NOT EXISTS t__idx_note ON t (note)" {
		t.Errorf("statements = %q", next.Statements)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
