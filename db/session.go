package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maxpert/mylite/cfg"
	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/protocol"
	"github.com/maxpert/mylite/protocol/query/transform"
	"github.com/maxpert/mylite/telemetry"
	"github.com/rs/zerolog/log"
)

// ErrCopyVerification is returned when a table-recreation copy does not
// hold every row of the original table.
var ErrCopyVerification = errors.New("table copy verification failed")

// CopyVerificationError carries the row counts that disagreed.
type CopyVerificationError struct {
	Table    string
	Original int64
	Copied   int64
}

func (e *CopyVerificationError) Error() string {
	return fmt.Sprintf("%s: %s has %d rows, copy has %d", ErrCopyVerification, e.Table, e.Original, e.Copied)
}

func (e *CopyVerificationError) Is(target error) bool {
	return target == ErrCopyVerification
}

// StatementError is a terminal failure of one target statement.
type StatementError struct {
	Op  string // exec, query, verify, begin, commit
	SQL string
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.SQL, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Result is the outcome of executing the statements of one request.
type Result struct {
	Set          *protocol.ResultSet // nil for statements without rows
	AffectedRows int64
	LastInsertID int64
}

// Options configures a Session
type Options struct {
	Path                string
	BusyTimeoutMS       int
	JournalMode         string
	SplitMultiRowInsert bool
	Retry               cfg.RetryConfiguration
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(c *cfg.Configuration) Options {
	return Options{
		Path:                c.Database.Path,
		BusyTimeoutMS:       c.Database.BusyTimeoutMS,
		JournalMode:         c.Database.JournalMode,
		SplitMultiRowInsert: c.Execution.SplitMultiRowInsert,
		Retry:               c.Retry,
	}
}

// Session owns the single SQLite connection of an engine and the explicit
// transaction opened by BEGIN. It is not safe for concurrent use.
type Session struct {
	db    *sql.DB
	retry *RetryPolicy

	tx         *sql.Tx
	savepoints int

	version      string
	splitInserts bool
}

// OpenSession opens the database at opts.Path through DriverName.
func OpenSession(opts Options) (*Session, error) {
	db, err := sql.Open(DriverName, dsn(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.Path, err)
	}
	// A second connection would not see the explicit transaction, and
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", opts.Path, err)
	}

	s := &Session{
		db:           db,
		retry:        NewRetryPolicy(opts.Retry),
		version:      version,
		splitInserts: opts.SplitMultiRowInsert || !SupportsMultiRowValues(version),
	}

	log.Debug().
		Str("path", opts.Path).
		Str("sqlite_version", version).
		Bool("split_inserts", s.splitInserts).
		Msg("Session opened")
	return s, nil
}

func dsn(opts Options) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.Itoa(opts.BusyTimeoutMS))
	params.Set("_txlock", "immediate")
	if opts.JournalMode != "" {
		params.Set("_journal_mode", opts.JournalMode)
	}
	return opts.Path + "?" + params.Encode()
}

// SupportsMultiRowValues reports whether SQLite version accepts
// INSERT ... VALUES (...), (...), added in 3.7.11.
func SupportsMultiRowValues(version string) bool {
	want := []int{3, 7, 11}
	parts := strings.Split(version, ".")
	for i, w := range want {
		if i >= len(parts) {
			return false
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return false
		}
		if n != w {
			return n > w
		}
	}
	return true
}

// Version returns the SQLite library version
func (s *Session) Version() string {
	return s.version
}

// SetRetryPolicy replaces the busy retry policy
func (s *Session) SetRetryPolicy(p *RetryPolicy) {
	s.retry = p
}

// Close rolls back a pending explicit transaction and closes the database.
func (s *Session) Close() error {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			log.Warn().Err(err).Msg("Failed to roll back pending transaction on close")
		}
		s.tx = nil
		telemetry.OpenTransactions.Set(0)
	}
	return s.db.Close()
}

// InTransaction reports whether an explicit transaction is open.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

func (s *Session) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Inspector returns an Inspector over the session's current view.
func (s *Session) Inspector() *Inspector {
	return NewInspector(s.querier())
}

// Begin opens an explicit transaction. A pending one is committed first,
// as MySQL does.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		if err := s.Commit(ctx); err != nil {
			return err
		}
	}
	return s.retry.Do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &StatementError{Op: "begin", SQL: "BEGIN", Err: err}
		}
		s.tx = tx
		s.savepoints = 0
		telemetry.OpenTransactions.Set(1)
		return nil
	})
}

// Commit commits the explicit transaction; without one it does nothing.
// The transaction is closed even when the commit fails.
func (s *Session) Commit(_ context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	telemetry.OpenTransactions.Set(0)
	if err != nil {
		return &StatementError{Op: "commit", SQL: "COMMIT", Err: err}
	}
	return nil
}

// Rollback rolls back the explicit transaction; without one it does nothing.
func (s *Session) Rollback(_ context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	telemetry.OpenTransactions.Set(0)
	if err != nil {
		return &StatementError{Op: "rollback", SQL: "ROLLBACK", Err: err}
	}
	return nil
}

// InTx runs fn inside one transaction, retrying the whole attempt while
// the database is busy. Inside an explicit transaction fn runs under a
// savepoint so a failure undoes only its own work.
func (s *Session) InTx(ctx context.Context, fn func(q Querier) error) error {
	return s.retry.Do(ctx, func() error {
		if s.tx != nil {
			return s.inSavepoint(ctx, fn)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &StatementError{Op: "begin", SQL: "BEGIN", Err: err}
		}
		if err := fn(tx); err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				log.Warn().Err(rerr).Msg("Rollback failed")
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return &StatementError{Op: "commit", SQL: "COMMIT", Err: err}
		}
		return nil
	})
}

func (s *Session) inSavepoint(ctx context.Context, fn func(q Querier) error) error {
	s.savepoints++
	name := "mylite_sp_" + strconv.Itoa(s.savepoints)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return &StatementError{Op: "begin", SQL: "SAVEPOINT " + name, Err: err}
	}

	if err := fn(s.tx); err != nil {
		if _, rerr := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rerr != nil {
			log.Warn().Err(rerr).Str("savepoint", name).Msg("Rollback to savepoint failed")
		}
		if _, rerr := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); rerr != nil {
			log.Warn().Err(rerr).Str("savepoint", name).Msg("Release savepoint failed")
		}
		return err
	}

	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return &StatementError{Op: "commit", SQL: "RELEASE SAVEPOINT " + name, Err: err}
	}
	return nil
}

// Execute runs the statements of one classified request:
//   - read-only kinds are queried and return rows
//   - OPTIMIZE runs outside any transaction
//   - everything else runs in one transaction, joining an explicit one
func (s *Session) Execute(ctx context.Context, kind common.StatementKind, stmts []transform.TranspiledStatement) (*Result, error) {
	if kind == common.StatementInsert || kind == common.StatementReplace {
		stmts = s.splitInsertStatements(stmts)
	}

	switch {
	case kind.IsReadOnly():
		return s.Query(ctx, stmts)

	case kind == common.StatementOptimize:
		res := &Result{}
		for _, st := range stmts {
			err := s.retry.Do(ctx, func() error {
				_, err := s.querier().ExecContext(ctx, st.SQL, st.Params...)
				return err
			})
			if err != nil {
				return nil, &StatementError{Op: "exec", SQL: st.SQL, Err: err}
			}
		}
		return res, nil
	}

	var res *Result
	err := s.InTx(ctx, func(q Querier) error {
		var err error
		res, err = ExecStatements(ctx, q, stmts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Query runs read statements and returns the rows of the last one.
func (s *Session) Query(ctx context.Context, stmts []transform.TranspiledStatement) (*Result, error) {
	res := &Result{}
	for _, st := range stmts {
		err := s.retry.Do(ctx, func() error {
			set, err := QueryRows(ctx, s.querier(), st)
			if err != nil {
				return err
			}
			res.Set = set
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Session) splitInsertStatements(stmts []transform.TranspiledStatement) []transform.TranspiledStatement {
	if !s.splitInserts {
		return stmts
	}
	var out []transform.TranspiledStatement
	for _, st := range stmts {
		parts := transform.SplitMultiRowInsert(st)
		if len(parts) > 1 {
			telemetry.InsertSplitsTotal.Inc()
		}
		out = append(out, parts...)
	}
	return out
}

// ExecStatements executes stmts in order through q, summing affected rows
// and keeping the last insert id.
func ExecStatements(ctx context.Context, q Querier, stmts []transform.TranspiledStatement) (*Result, error) {
	res := &Result{}
	for _, st := range stmts {
		r, err := q.ExecContext(ctx, st.SQL, st.Params...)
		if err != nil {
			return nil, &StatementError{Op: "exec", SQL: st.SQL, Err: err}
		}
		if n, err := r.RowsAffected(); err == nil {
			res.AffectedRows += n
		}
		if id, err := r.LastInsertId(); err == nil && id != 0 {
			res.LastInsertID = id
		}
	}
	return res, nil
}

// ExecSequence executes a structural rewrite through q. For a recreation
// sequence the copy is verified against the original table before the
// original is dropped.
func ExecSequence(ctx context.Context, q Querier, rewrite *transform.RewriteResult) error {
	start := time.Now()
	for i, stmt := range rewrite.Statements {
		if rc := rewrite.Recreate; rc != nil && i == rc.DropStep {
			if err := verifyCopy(ctx, q, rc); err != nil {
				telemetry.TableRebuildsTotal.With("failed").Inc()
				return &StatementError{Op: "verify", SQL: stmt, Err: err}
			}
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			if rewrite.Recreate != nil {
				telemetry.TableRebuildsTotal.With("failed").Inc()
			}
			return &StatementError{Op: "exec", SQL: stmt, Err: err}
		}
	}

	if rc := rewrite.Recreate; rc != nil {
		telemetry.TableRebuildsTotal.With("ok").Inc()
		telemetry.TableRebuildSeconds.Observe(time.Since(start).Seconds())
		log.Info().
			Str("table", rc.Table).
			Dur("duration", time.Since(start)).
			Msg("Table recreated")
	}
	return nil
}

func verifyCopy(ctx context.Context, q Querier, rc *transform.Recreation) error {
	inspector := NewInspector(q)
	original, err := inspector.CountRows(ctx, rc.Table)
	if err != nil {
		return err
	}
	copied, err := inspector.CountRows(ctx, rc.TempTable)
	if err != nil {
		return err
	}
	if original != copied {
		return &CopyVerificationError{Table: rc.Table, Original: original, Copied: copied}
	}
	return nil
}

// QueryRows runs a statement that returns rows.
func QueryRows(ctx context.Context, q Querier, st transform.TranspiledStatement) (*protocol.ResultSet, error) {
	rows, err := q.QueryContext(ctx, st.SQL, st.Params...)
	if err != nil {
		return nil, &StatementError{Op: "query", SQL: st.SQL, Err: err}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &StatementError{Op: "query", SQL: st.SQL, Err: err}
	}

	set := &protocol.ResultSet{Columns: make([]protocol.ColumnDef, len(types))}
	for i, ct := range types {
		set.Columns[i] = protocol.ColumnDef{
			Name: ct.Name(),
			Type: protocol.ColumnTypeFromDecl(strings.ToUpper(ct.DatabaseTypeName())),
		}
	}

	for rows.Next() {
		row := make([]interface{}, len(types))
		ptrs := make([]interface{}, len(types))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &StatementError{Op: "query", SQL: st.SQL, Err: err}
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok && set.Columns[i].Type != protocol.TypeBlob {
				row[i] = string(b)
			}
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StatementError{Op: "query", SQL: st.SQL, Err: err}
	}
	return set, nil
}
