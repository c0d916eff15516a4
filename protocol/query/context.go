package query

import (
	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/protocol/query/transform"
)

// Transformation records a rewrite rule that changed a statement.
type Transformation struct {
	Rule   string
	Before string
	After  string
}

// StatementMeta holds what the result formatter needs from SHOW, DESCRIBE
// and table maintenance statements.
type StatementMeta struct {
	Table  string
	Tables []string // CHECK / ANALYZE / OPTIMIZE table lists
	Like   string   // LIKE pattern, quotes removed
	Full   bool

	// WHERE <column> = <value> lifted from SHOW ... WHERE
	WhereColumn string
	WhereValue  string
}

// QueryContext holds all state for one statement travelling through the pipeline.
type QueryContext struct {
	OriginalSQL string

	// SQL is the classified text. It differs from OriginalSQL only when the
	// classifier rewrote the statement (DROP INDEX i ON t).
	SQL string

	Kind common.StatementKind
	Meta StatementMeta

	// Statements are ready to execute in order. Empty for kinds answered by
	// the result formatter and for ALTER TABLE, which is rewritten inside
	// its executing transaction.
	Statements []transform.TranspiledStatement

	// Rewrite carries the structural rewrite of a CREATE statement.
	Rewrite *transform.RewriteResult

	// CalcFoundRows is set for SELECT SQL_CALC_FOUND_ROWS.
	CalcFoundRows bool

	Transformations []Transformation
	WasCached       bool
}

// NewContext creates a QueryContext for sql.
func NewContext(sql string) *QueryContext {
	return &QueryContext{
		OriginalSQL: sql,
		SQL:         sql,
	}
}
