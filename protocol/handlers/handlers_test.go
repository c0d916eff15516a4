package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/maxpert/mylite/cfg"
	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/db"
	"github.com/maxpert/mylite/protocol/query/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *MetadataHandler {
	t.Helper()
	s, err := db.OpenSession(db.Options{
		Path:  ":memory:",
		Retry: cfg.RetryConfiguration{MaxAttempts: 1, InitialBackoffMS: 1, MaxBackoffMS: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var ddl []transform.TranspiledStatement
	for _, q := range []string{
		"CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL DEFAULT 'untitled', slug VARCHAR(255), views INTEGER DEFAULT 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS posts__slug ON posts (slug)",
		"CREATE INDEX IF NOT EXISTS posts__idx_title_views ON posts (title, views)",
		"CREATE TABLE post_tags (post_id INTEGER NOT NULL, tag TEXT NOT NULL, PRIMARY KEY (post_id, tag))",
		"INSERT INTO posts (title, slug) VALUES ('a', 'a'), ('b', 'b')",
	} {
		ddl = append(ddl, transform.TranspiledStatement{SQL: q})
	}
	_, err = s.Execute(context.Background(), common.StatementCreate, ddl)
	require.NoError(t, err)

	return NewMetadataHandler(s.Inspector(), "main")
}

func column(t *testing.T, names []string, name string) int {
	t.Helper()
	for i, n := range names {
		if n == name {
			return i
		}
	}
	t.Fatalf("no column %s in %v", name, names)
	return -1
}

func TestShowColumns(t *testing.T) {
	h := newTestHandler(t)

	rs, err := h.HandleShowColumns(context.Background(), "posts", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Field", "Type", "Null", "Key", "Default", "Extra"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{
		{"id", "int", "NO", "PRI", nil, "auto_increment"},
		{"title", "text", "NO", "MUL", "untitled", ""},
		{"slug", "varchar(255)", "YES", "UNI", nil, ""},
		{"views", "int", "YES", "", "0", ""},
	}, rs.Rows)
}

func TestShowColumns_Full(t *testing.T) {
	h := newTestHandler(t)

	rs, err := h.HandleShowColumns(context.Background(), "post_tags", true)
	require.NoError(t, err)
	names := rs.ColumnNames()
	require.Len(t, names, 9)
	require.Len(t, rs.Rows, 2)

	key := column(t, names, "Key")
	collation := column(t, names, "Collation")
	assert.Equal(t, "PRI", rs.Rows[0][key])
	assert.Equal(t, "PRI", rs.Rows[1][key])
	assert.Nil(t, rs.Rows[0][collation])
	assert.Equal(t, "utf8mb4_general_ci", rs.Rows[1][collation])
}

func TestShowColumns_MissingTable(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.HandleShowColumns(context.Background(), "nope", false)
	var myErr *mysql.MySQLError
	require.True(t, errors.As(err, &myErr))
	assert.Equal(t, uint16(1146), myErr.Number)
	assert.Equal(t, "Table 'main.nope' doesn't exist", myErr.Message)
}

func TestShowIndex(t *testing.T) {
	h := newTestHandler(t)

	rs, err := h.HandleShowIndex(context.Background(), "posts", "", "")
	require.NoError(t, err)
	require.Len(t, rs.Columns, 13)

	type row struct {
		nonUnique int
		key       string
		seq       int
		column    string
		null      string
	}
	var got []row
	for _, r := range rs.Rows {
		assert.Equal(t, "posts", r[0])
		got = append(got, row{r[1].(int), r[2].(string), r[3].(int), r[4].(string), r[9].(string)})
	}
	assert.Equal(t, []row{
		{0, "PRIMARY", 1, "id", ""},
		{1, "idx_title_views", 1, "title", ""},
		{1, "idx_title_views", 2, "views", "YES"},
		{0, "slug", 1, "slug", "YES"},
	}, got)
}

func TestShowIndex_CompositePrimaryKeyAndFilter(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	rs, err := h.HandleShowIndex(ctx, "post_tags", "", "")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "post_id", rs.Rows[0][4])
	assert.Equal(t, "tag", rs.Rows[1][4])
	assert.Equal(t, 2, rs.Rows[1][3])

	rs, err = h.HandleShowIndex(ctx, "posts", "Key_name", "PRIMARY")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "id", rs.Rows[0][4])

	rs, err = h.HandleShowIndex(ctx, "posts", "Key_name", "missing")
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestShowTables(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	rs, err := h.HandleShowTables(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tables_in_main"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{{"post_tags"}, {"posts"}}, rs.Rows)

	rs, err = h.HandleShowTables(ctx, "post\\_%", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tables_in_main", "Table_type"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{{"post_tags", "BASE TABLE"}}, rs.Rows)

	rs, err = h.HandleShowTables(ctx, "POSTS", false)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"posts"}}, rs.Rows)
}

func TestShowTableStatus(t *testing.T) {
	h := newTestHandler(t)

	rs, err := h.HandleShowTableStatus(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	names := rs.ColumnNames()
	assert.Equal(t, "posts", rs.Rows[0][column(t, names, "Name")])
	assert.Equal(t, int64(2), rs.Rows[0][column(t, names, "Rows")])
	assert.Len(t, rs.Rows[0], len(names))
}

func TestCheckAndAnalyze(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	rs, err := h.HandleCheck(ctx, []string{"posts", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Table", "Op", "Msg_type", "Msg_text"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{
		{"main.posts", "check", "status", "OK"},
		{"main.ghost", "check", "Error", "Table 'main.ghost' doesn't exist"},
		{"main.ghost", "check", "status", "Operation failed"},
	}, rs.Rows)

	rs, err = h.HandleAnalyze(ctx, []string{"posts"})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"main.posts", "analyze", "status", "Table is already up to date"}}, rs.Rows)
}

func TestShowVariables(t *testing.T) {
	rs, err := HandleShowVariables("max_allowed_packet", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Variable_name", "Value"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{{"max_allowed_packet", "67108864"}}, rs.Rows)

	rs, err = HandleShowVariables("", "Variable_name", "VERSION")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"version", ServerVersion}}, rs.Rows)

	rs, err = HandleShowVariables("no_such_variable", "", "")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"no_such_variable", ""}}, rs.Rows)

	rs, err = HandleShowVariables("character_set_%", "", "")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 5)
	assert.Equal(t, "character_set_client", rs.Rows[0][0])

	rs, err = HandleShowVariables("", "", "")
	require.NoError(t, err)
	assert.Len(t, rs.Rows, len(systemVariables))
}

func TestFoundRows(t *testing.T) {
	rs := HandleFoundRows(42)
	assert.Equal(t, []string{"FOUND_ROWS()"}, rs.ColumnNames())
	assert.Equal(t, [][]interface{}{{int64(42)}}, rs.Rows)
}

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"", "anything", true},
		{"wp_%", "wp_posts", true},
		{"wp_%", "wpXposts", true},
		{"wp\\_%", "wpXposts", false},
		{"wp\\_%", "wp_posts", true},
		{"%posts", "WP_POSTS", true},
		{"a*b", "a*b", true},
		{"a*b", "axxb", false},
		{"t?", "tx", false},
		{"100\\%", "100%", true},
	}
	for _, tt := range tests {
		if got := likeMatch(tt.pattern, tt.name); got != tt.want {
			t.Errorf("likeMatch(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestSQLiteToMySQLType(t *testing.T) {
	tests := map[string]string{
		"INTEGER":      "int",
		"BIGINT":       "bigint",
		"TEXT":         "text",
		"VARCHAR(255)": "varchar(255)",
		"REAL":         "float",
		"BLOB":         "blob",
		"":             "text",
		"DATETIME":     "datetime",
	}
	for in, want := range tests {
		assert.Equal(t, want, sqliteToMySQLType(in), in)
	}
}
