package query

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/protocol/query/rules"
	"github.com/maxpert/mylite/protocol/query/transform"
	"github.com/maxpert/mylite/telemetry"
	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	calcFoundRowsPattern = regexp.MustCompile(`(?i)\bSQL_CALC_FOUND_ROWS\b`)
	trailingLimitPattern = regexp.MustCompile(`(?is)\s+LIMIT\s+\d+(\s*(,|OFFSET)\s*\d+)?\s*$`)
	dropTablePattern     = regexp.MustCompile(`(?is)^DROP\s+(TEMPORARY\s+)?TABLES?\s+(IF\s+EXISTS\s+)?(.+?)(\s+(RESTRICT|CASCADE))?$`)
)

// Pipeline turns one MySQL statement into executable SQLite statements.
//
// Pipeline flow:
//
//	Classify → statement metadata → per kind:
//	  DML / SELECT / transaction control: literal extraction → rule set
//	  CREATE: Create-Table Rewriter → escape normalization
//	  ALTER:  deferred to RewriteAlter, which needs a schema view
//	  SHOW / DESCRIBE / CHECK / ANALYZE / SET / FOUND_ROWS: metadata only
type Pipeline struct {
	parser     *sqlparser.Parser
	transpiler *Transpiler
	create     *transform.CreateRewriter
	alter      *transform.AlterRewriter
	escaping   rules.EscapingRule
	budget     transform.ScanBudget
}

func NewPipeline(cacheSize int, budget transform.ScanBudget) (*Pipeline, error) {
	p, err := sqlparser.New(sqlparser.Options{})
	if err != nil {
		return nil, err
	}

	t, err := NewTranspiler(cacheSize)
	if err != nil {
		return nil, err
	}

	c, err := transform.NewCreateRewriter(cacheSize)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		parser:     p,
		transpiler: t,
		create:     c,
		alter:      transform.NewAlterRewriter(),
		budget:     budget,
	}, nil
}

// Process classifies ctx.OriginalSQL and fills ctx with everything needed
// to execute or answer it.
func (p *Pipeline) Process(ctx *QueryContext) error {
	kind, sql, err := Classify(ctx.OriginalSQL)
	if err != nil {
		return err
	}
	ctx.Kind = kind
	ctx.SQL = trimStatement(sql)
	if kind == common.StatementAlter || kind == common.StatementCreate {
		// the DDL rewriters anchor on the leading keyword
		ctx.SQL = trimStatement(StripLeadingComments(sql))
	}

	extractMeta(p.parser, ctx)

	switch kind {
	case common.StatementCreate:
		return p.rewriteCreate(ctx)

	case common.StatementAlter, common.StatementShowTables, common.StatementShowColumns,
		common.StatementShowIndex, common.StatementShowVariables, common.StatementShowStatus,
		common.StatementDescribe, common.StatementCheck, common.StatementAnalyze,
		common.StatementSet, common.StatementFoundRows:
		return nil

	case common.StatementDrop:
		ctx.Statements = splitDropTables(ctx.SQL)
		return nil

	default:
		return p.transpile(ctx)
	}
}

func (p *Pipeline) transpile(ctx *QueryContext) error {
	sql, params, err := transform.ExtractParameters(ctx.SQL, p.budget)
	if err != nil {
		return err
	}

	if ctx.Kind == common.StatementSelect && calcFoundRowsPattern.MatchString(sql) {
		ctx.CalcFoundRows = true
	}

	out, transformations, cached, err := p.transpiler.Transpile(sql)
	if err != nil {
		return err
	}
	ctx.Transformations = transformations
	ctx.WasCached = cached
	ctx.Statements = []transform.TranspiledStatement{{SQL: out, Params: params}}
	return nil
}

func (p *Pipeline) rewriteCreate(ctx *QueryContext) error {
	result, err := p.create.Rewrite(ctx.SQL)
	if errors.Is(err, transform.ErrRuleNotApplicable) {
		// CREATE VIEW / TRIGGER / DATABASE pass through
		ctx.Statements = []transform.TranspiledStatement{{SQL: p.escape(ctx.SQL)}}
		return nil
	}
	if err != nil {
		telemetry.RewritesTotal.With(ctx.Kind.String(), "failed").Inc()
		return err
	}

	for i, stmt := range result.Statements {
		result.Statements[i] = p.escape(stmt)
	}
	ctx.Rewrite = result
	ctx.Statements = toStatements(result.Statements)
	recordRewrite(ctx.Kind, result)
	return nil
}

// RewriteAlter rewrites the first clause of a MySQL ALTER TABLE statement.
// schema must see the transaction the result will execute in.
func (p *Pipeline) RewriteAlter(ctx context.Context, sql string, schema transform.SchemaReader) (*transform.RewriteResult, error) {
	return p.ContinueAlter(ctx, p.escape(trimStatement(StripLeadingComments(sql))), schema)
}

// ContinueAlter rewrites a RewriteResult.Recursion statement. Its literals
// were normalized by the RewriteAlter call that produced it.
func (p *Pipeline) ContinueAlter(ctx context.Context, sql string, schema transform.SchemaReader) (*transform.RewriteResult, error) {
	result, err := p.alter.Rewrite(ctx, sql, schema)
	if err != nil {
		telemetry.RewritesTotal.With(common.StatementAlter.String(), "failed").Inc()
		return nil, err
	}
	recordRewrite(common.StatementAlter, result)
	return result, nil
}

func (p *Pipeline) escape(sql string) string {
	out, _, err := p.escaping.ApplyPattern(sql)
	if err != nil {
		return sql
	}
	return out
}

// CountQuery wraps a SELECT in COUNT(*) with its trailing LIMIT removed,
// giving the row count SQL_CALC_FOUND_ROWS asks for. A LIMIT bound to
// placeholders is kept so parameters stay aligned.
func CountQuery(stmt transform.TranspiledStatement) transform.TranspiledStatement {
	sql := trailingLimitPattern.ReplaceAllString(trimStatement(stmt.SQL), "")
	return transform.TranspiledStatement{
		SQL:    "SELECT COUNT(*) FROM (" + sql + ")",
		Params: stmt.Params,
	}
}

// splitDropTables turns DROP TABLE a, b into one statement per table.
func splitDropTables(sql string) []transform.TranspiledStatement {
	m := dropTablePattern.FindStringSubmatch(StripLeadingComments(sql))
	if m == nil {
		return []transform.TranspiledStatement{{SQL: sql}}
	}

	head := "DROP TABLE "
	if m[2] != "" {
		head += "IF EXISTS "
	}
	var out []transform.TranspiledStatement
	for _, t := range strings.Split(m[3], ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, transform.TranspiledStatement{SQL: head + baseTableName(t)})
		}
	}
	return out
}

func toStatements(sqls []string) []transform.TranspiledStatement {
	out := make([]transform.TranspiledStatement, len(sqls))
	for i, s := range sqls {
		out[i] = transform.TranspiledStatement{SQL: s}
	}
	return out
}

func recordRewrite(kind common.StatementKind, result *transform.RewriteResult) {
	outcome := "single"
	switch {
	case result.NoOp:
		outcome = "noop"
	case result.IsSequence():
		outcome = "sequence"
	}
	telemetry.RewritesTotal.With(kind.String(), outcome).Inc()
	telemetry.RewriteStatements.Observe(float64(len(result.Statements)))
}

// trimStatement removes surrounding whitespace and trailing semicolons.
func trimStatement(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
}
