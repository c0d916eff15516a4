// Package engine is the single entry point for MySQL-dialect statements.
//
// A Query call moves through Idle → Classified → Rewritten → Executed →
// Formatted and back to Idle. Errors, the debug trace and the last result
// are reset on entry; the connection, an explicit transaction opened by
// BEGIN and the FOUND_ROWS() counter survive across calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maxpert/mylite/cfg"
	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/db"
	"github.com/maxpert/mylite/protocol"
	"github.com/maxpert/mylite/protocol/handlers"
	"github.com/maxpert/mylite/protocol/query"
	"github.com/maxpert/mylite/protocol/query/transform"
	"github.com/maxpert/mylite/telemetry"
	"github.com/rs/zerolog/log"
)

// Options configures an Engine
type Options struct {
	Session          db.Options
	DatabaseName     string
	ScanBudget       transform.ScanBudget
	RewriteCacheSize int
	SuppressErrors   bool
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(c *cfg.Configuration) Options {
	return Options{
		Session:      db.OptionsFromConfig(c),
		DatabaseName: c.Database.Name,
		ScanBudget: transform.ScanBudget{
			Initial: c.Execution.ParamScanBudget,
			Max:     c.Execution.MaxParamScanBudget,
		},
		RewriteCacheSize: c.Execution.RewriteCacheSize,
		SuppressErrors:   c.Execution.SuppressErrors,
	}
}

// Engine runs MySQL-dialect statements against one SQLite database.
// Calls are serialized.
type Engine struct {
	mu sync.Mutex

	session  *db.Session
	pipeline *query.Pipeline
	dbName   string
	suppress bool

	last      *Result
	trace     []string
	foundRows int64
}

// Open opens the database and prepares the rewrite pipeline.
func Open(opts Options) (*Engine, error) {
	if opts.RewriteCacheSize < 1 {
		opts.RewriteCacheSize = 1
	}
	if opts.DatabaseName == "" {
		opts.DatabaseName = "main"
	}
	if opts.ScanBudget.Max < 1 {
		opts.ScanBudget.Max = cfg.DefaultMaxParamScanBudget
	}
	if opts.ScanBudget.Initial < 1 {
		opts.ScanBudget.Initial = min(cfg.DefaultParamScanBudget, opts.ScanBudget.Max)
	}

	pipeline, err := query.NewPipeline(opts.RewriteCacheSize, opts.ScanBudget)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	session, err := db.OpenSession(opts.Session)
	if err != nil {
		return nil, err
	}

	return &Engine{
		session:  session,
		pipeline: pipeline,
		dbName:   opts.DatabaseName,
		suppress: opts.SuppressErrors,
		last:     &Result{Success: true},
	}, nil
}

// Close rolls back an open explicit transaction and closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Close()
}

// Query runs one statement with a background context.
func (e *Engine) Query(sql string) *Result {
	return e.QueryContext(context.Background(), sql)
}

// QueryContext classifies, rewrites, executes and formats one statement.
// It never panics; failures are recorded on the returned Result.
func (e *Engine) QueryContext(ctx context.Context, sql string) (res *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trace = e.trace[:0]
	res = &Result{Success: true}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sql", sql).Msg("Recovered from panic while running query")
			res.fail(QueryError{
				Message:   fmt.Sprintf("internal error: %v", r),
				Statement: sql,
				Func:      "query",
			})
		}

		outcome := "ok"
		if res.IsError {
			outcome = "error"
		}
		telemetry.QueriesTotal.With(res.Kind.String(), outcome).Inc()
		telemetry.QueryDurationSeconds.With(res.Kind.String()).Observe(time.Since(start).Seconds())
		e.last = res
	}()

	qctx := query.NewContext(sql)
	err := e.pipeline.Process(qctx)
	res.Kind = qctx.Kind
	if err != nil {
		e.processFailed(ctx, qctx, err, res)
		return res
	}
	e.tracef("classified as %s", qctx.Kind)
	for _, t := range qctx.Transformations {
		e.tracef("rule %s: %s", t.Rule, t.After)
	}

	e.execute(ctx, qctx, res)
	return res
}

func (e *Engine) processFailed(ctx context.Context, qctx *query.QueryContext, err error, res *Result) {
	switch {
	case errors.Is(err, query.ErrUnknownQueryType), errors.Is(err, query.ErrUnsupportedShow):
		telemetry.ClassificationFailuresTotal.Inc()
		res.fail(e.queryError("classify", qctx.OriginalSQL, err))

	case errors.Is(err, transform.ErrQueryTooLarge):
		res.fail(e.queryError("extract", "", err))

	case qctx.Kind == common.StatementCreate:
		e.skipRewrite(ctx, qctx.SQL, err, res)

	default:
		res.fail(e.queryError("rewrite", qctx.SQL, err))
	}
}

// skipRewrite executes the no-op statement in place of one the rewriters
// could not handle. The skip is a warning, not an error.
func (e *Engine) skipRewrite(ctx context.Context, sql string, cause error, res *Result) {
	log.Warn().Err(cause).Str("sql", sql).Msg("Statement could not be rewritten, executing no-op")
	e.tracef("rewrite skipped: %v", cause)

	if _, err := e.session.Execute(ctx, common.StatementSelect,
		[]transform.TranspiledStatement{{SQL: transform.NoOpStatement}}); err != nil {
		res.fail(e.queryError("execute", transform.NoOpStatement, err))
	}
}

func (e *Engine) execute(ctx context.Context, qctx *query.QueryContext, res *Result) {
	switch qctx.Kind {
	case common.StatementBegin:
		e.check(res, "begin", "BEGIN", e.session.Begin(ctx))
	case common.StatementCommit:
		e.check(res, "commit", "COMMIT", e.session.Commit(ctx))
	case common.StatementRollback:
		e.check(res, "rollback", "ROLLBACK", e.session.Rollback(ctx))

	case common.StatementSet:
		log.Debug().Str("sql", qctx.SQL).Msg("Ignoring SET statement")

	case common.StatementAlter:
		e.alter(ctx, qctx.SQL, res)

	case common.StatementSelect:
		e.selectRows(ctx, qctx, res)

	case common.StatementFoundRows, common.StatementShowTables, common.StatementShowColumns,
		common.StatementShowIndex, common.StatementShowVariables, common.StatementShowStatus,
		common.StatementDescribe, common.StatementCheck, common.StatementAnalyze:
		e.format(ctx, qctx, res)

	default:
		out, err := e.session.Execute(ctx, qctx.Kind, qctx.Statements)
		if err != nil {
			res.fail(e.queryError("execute", "", err))
			return
		}
		res.AffectedRows = out.AffectedRows
		res.LastInsertID = out.LastInsertID
		if qctx.Kind.IsMutation() {
			telemetry.RowsAffected.Observe(float64(out.AffectedRows))
		}
	}
}

func (e *Engine) selectRows(ctx context.Context, qctx *query.QueryContext, res *Result) {
	out, err := e.session.Execute(ctx, qctx.Kind, qctx.Statements)
	if err != nil {
		res.fail(e.queryError("execute", "", err))
		return
	}
	e.setRows(res, out.Set)
	e.foundRows = res.RowCount

	if qctx.CalcFoundRows && len(qctx.Statements) > 0 {
		count := query.CountQuery(qctx.Statements[len(qctx.Statements)-1])
		e.tracef("found rows: %s", count.SQL)
		cnt, err := e.session.Query(ctx, []transform.TranspiledStatement{count})
		if err != nil {
			res.fail(e.queryError("execute", count.SQL, err))
			return
		}
		if cnt.Set != nil && len(cnt.Set.Rows) == 1 && len(cnt.Set.Rows[0]) == 1 {
			if n, ok := cnt.Set.Rows[0][0].(int64); ok {
				e.foundRows = n
			}
		}
	}
	telemetry.RowsReturned.Observe(float64(res.RowCount))
}

// alter runs the head clause of an ALTER TABLE in one transaction that
// also reads the schema, then each remaining clause once the previous
// one has committed.
func (e *Engine) alter(ctx context.Context, sql string, res *Result) {
	rewrite := e.pipeline.RewriteAlter
	for next := sql; next != ""; {
		var result *transform.RewriteResult
		err := e.session.InTx(ctx, func(q db.Querier) error {
			var err error
			result, err = rewrite(ctx, next, db.NewInspector(q))
			if err != nil {
				return &rewriteError{err: err}
			}
			for _, stmt := range result.Statements {
				e.tracef("alter: %s", stmt)
			}
			return db.ExecSequence(ctx, q, result)
		})

		var (
			rerr *rewriteError
			derr *transform.DefinitionError
		)
		switch {
		case err == nil:
		case errors.As(err, &derr):
			res.fail(e.queryError("rewrite", next, derr))
			return
		case errors.As(err, &rerr) && !db.IsBusy(err):
			e.skipRewrite(ctx, next, rerr.err, res)
			return
		default:
			res.fail(e.queryError("execute", "", err))
			return
		}

		next = result.Recursion
		rewrite = e.pipeline.ContinueAlter
	}
}

type rewriteError struct {
	err error
}

func (e *rewriteError) Error() string { return e.err.Error() }
func (e *rewriteError) Unwrap() error { return e.err }

// format answers statements the result formatter synthesizes.
func (e *Engine) format(ctx context.Context, qctx *query.QueryContext, res *Result) {
	meta := qctx.Meta
	h := handlers.NewMetadataHandler(e.session.Inspector(), e.dbName)

	var (
		set *protocol.ResultSet
		err error
	)
	switch qctx.Kind {
	case common.StatementFoundRows:
		set = handlers.HandleFoundRows(e.foundRows)
	case common.StatementShowTables:
		set, err = h.HandleShowTables(ctx, meta.Like, meta.Full)
	case common.StatementShowColumns, common.StatementDescribe:
		set, err = h.HandleShowColumns(ctx, meta.Table, meta.Full)
	case common.StatementShowIndex:
		set, err = h.HandleShowIndex(ctx, meta.Table, meta.WhereColumn, meta.WhereValue)
	case common.StatementShowStatus:
		set, err = h.HandleShowTableStatus(ctx, meta.Like)
	case common.StatementShowVariables:
		set, err = handlers.HandleShowVariables(meta.Like, meta.WhereColumn, meta.WhereValue)
	case common.StatementCheck:
		set, err = h.HandleCheck(ctx, meta.Tables)
	case common.StatementAnalyze:
		e.analyze(ctx, meta.Tables)
		set, err = h.HandleAnalyze(ctx, meta.Tables)
	}
	if err != nil {
		res.fail(e.queryError("format", qctx.SQL, err))
		return
	}
	e.setRows(res, set)
}

// analyze refreshes SQLite statistics. A table that does not exist is
// reported by the formatted result, not as an error.
func (e *Engine) analyze(ctx context.Context, tables []string) {
	for _, t := range tables {
		stmt := transform.TranspiledStatement{SQL: "ANALYZE " + quoteIdent(t)}
		if _, err := e.session.Query(ctx, []transform.TranspiledStatement{stmt}); err != nil {
			log.Debug().Err(err).Str("table", t).Msg("ANALYZE failed")
		}
	}
}

func (e *Engine) setRows(res *Result, set *protocol.ResultSet) {
	if set == nil {
		return
	}
	res.ResultSet = set
	res.RowCount = int64(len(set.Rows))
}

func (e *Engine) check(res *Result, fn, stmt string, err error) {
	if err != nil {
		res.fail(e.queryError(fn, stmt, err))
	}
}

// queryError converts err to its MySQL form. The failing statement is
// taken from err when it carries one.
func (e *Engine) queryError(fn, stmt string, err error) QueryError {
	var se *db.StatementError
	if errors.As(err, &se) {
		stmt = se.SQL
	}
	myErr := protocol.ConvertToMySQLError(err)

	log.Debug().Err(err).Str("func", fn).Str("sql", stmt).Msg("Query failed")
	return QueryError{
		Message:   myErr.Error(),
		Statement: stmt,
		Func:      fn,
		Err:       myErr,
	}
}

func (e *Engine) tracef(format string, args ...interface{}) {
	e.trace = append(e.trace, fmt.Sprintf(format, args...))
}

// LastInsertID returns the last insert id of the previous query.
func (e *Engine) LastInsertID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.LastInsertID
}

// AffectedRows returns the rows changed by the previous query.
func (e *Engine) AffectedRows() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.AffectedRows
}

// Rows returns the rows of the previous query keyed by column name.
func (e *Engine) Rows() []map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last.ResultSet == nil {
		return nil
	}
	return e.last.ResultSet.RowMaps()
}

// ErrorMessage returns the errors of the previous query, one per line.
// It is empty when errors are suppressed.
func (e *Engine) ErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.suppress {
		return ""
	}
	return strings.Join(e.last.ErrorMessages(), "\n")
}

// Errors returns the errors recorded by the previous query, suppressed or not.
func (e *Engine) Errors() []QueryError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]QueryError(nil), e.last.Errors...)
}

// Trace returns the debug trace of the previous query.
func (e *Engine) Trace() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.trace...)
}

// InTransaction reports whether BEGIN left a transaction open.
func (e *Engine) InTransaction() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.InTransaction()
}

// DatabaseStats implements telemetry.StatsProvider.
func (e *Engine) DatabaseStats() (int, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Inspector().DatabaseStats(context.Background())
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
