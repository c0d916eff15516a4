package engine

import (
	"errors"
	"fmt"

	"github.com/maxpert/mylite/common"
	"github.com/maxpert/mylite/protocol"
)

// QueryError is one failure recorded while answering a query.
type QueryError struct {
	Message   string
	Statement string // statement that failed, after rewriting where known
	Func      string // step that failed: classify, rewrite, execute, format
	Err       error
}

func (e QueryError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("%s: %s", e.Func, e.Message)
	}
	return fmt.Sprintf("%s: %s [%s]", e.Func, e.Message, e.Statement)
}

func (e QueryError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one Query call.
type Result struct {
	Kind common.StatementKind

	// ResultSet is set for SELECT and every statement answered with rows.
	ResultSet *protocol.ResultSet
	RowCount  int64

	AffectedRows int64
	LastInsertID int64

	// Success is false when any error was recorded.
	Success bool
	IsError bool
	Errors  []QueryError
}

func (r *Result) fail(qe QueryError) {
	r.Success = false
	r.IsError = true
	r.Errors = append(r.Errors, qe)
}

// ErrorMessages returns the message of every recorded error.
func (r *Result) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// Err returns the recorded errors as one error, or nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
