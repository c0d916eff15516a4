// Package transform rewrites MySQL statements into SQLite statements.
//
// Structural rewrites live here:
//   - CREATE TABLE / CREATE INDEX via the Vitess AST
//   - ALTER TABLE via a clause parser and, where SQLite has no equivalent,
//     the table-recreation protocol
//   - column type mapping shared by both
//   - literal extraction and multi-row INSERT splitting used by execution
//
// Token level rewrites (LIMIT a,b, INSERT IGNORE, hints) live in package rules.
package transform

import (
	"context"
	"errors"
	"strings"
)

// TranspiledStatement represents a SQLite-ready statement with parameters
type TranspiledStatement struct {
	SQL    string
	Params []interface{}
}

// ErrRuleNotApplicable indicates rule doesn't apply to this statement type
var ErrRuleNotApplicable = errors.New("rule not applicable")

// NoOpStatement is executed in place of a statement that could not be rewritten.
const NoOpStatement = "SELECT 1=1"

// TempTablePrefix names the copy built during table recreation.
const TempTablePrefix = "temp_"

// IndexNameSeparator joins table and index names. MySQL index names are
// scoped to a table while SQLite index names are global.
const IndexNameSeparator = "__"

// RewriteResult is the output of a structural rewrite.
type RewriteResult struct {
	// Statements run in order inside one transaction. One entry is a
	// single rewrite, more are a sequence.
	Statements []string

	// Recreate is set when Statements implement the table-recreation protocol.
	Recreate *Recreation

	// Recursion is the remaining "ALTER TABLE t ..." clauses, to be
	// rewritten and executed after Statements commit.
	Recursion string

	// NoOp is set when the request needed no structural change.
	NoOp bool
}

// IsSequence reports whether the rewrite produced more than one statement.
func (r *RewriteResult) IsSequence() bool {
	return len(r.Statements) > 1
}

// Recreation describes a table-recreation sequence.
type Recreation struct {
	Table     string
	TempTable string
	// DropStep is the index in Statements of DROP TABLE <Table>. Row counts
	// of Table and TempTable must match before it runs.
	DropStep int
}

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey int // 1-based position in the primary key, 0 if not part of it
}

// TableSchema is what a rewrite needs to know about an existing table.
type TableSchema struct {
	Name      string
	CreateSQL string
	Columns   []ColumnInfo
	Indexes   []string // CREATE INDEX statements, auto indexes excluded

	// AutoIncrement names the INTEGER PRIMARY KEY AUTOINCREMENT column, if any
	AutoIncrement string
}

// ColumnNames returns the column names in table order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// SchemaReader reads the current definition of a table. Implementations
// bound to a transaction see that transaction's view of the schema.
type SchemaReader interface {
	ReadTableSchema(ctx context.Context, table string) (*TableSchema, error)
}

// SQLiteIndexName returns the database-wide index name for a table index.
func SQLiteIndexName(table, index string) string {
	return table + IndexNameSeparator + index
}

// MySQLIndexName reverses SQLiteIndexName.
func MySQLIndexName(table, index string) string {
	prefix := table + IndexNameSeparator
	if len(index) > len(prefix) && strings.EqualFold(index[:len(prefix)], prefix) {
		return index[len(prefix):]
	}
	return index
}
