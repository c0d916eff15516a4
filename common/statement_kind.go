// Package common provides shared types used across the codebase.
// StatementKind is defined HERE and ONLY HERE; the classifier, the
// rewriters and the engine all route on it.
package common

// StatementKind categorizes MySQL statements for rewrite and execution routing.
type StatementKind int

const (
	StatementUnknown StatementKind = iota // 0 - means not yet classified
	StatementSelect
	StatementInsert
	StatementUpdate
	StatementDelete
	StatementReplace
	StatementCreate
	StatementAlter
	StatementDrop
	StatementDropIndex
	StatementShowTables
	StatementShowColumns
	StatementShowIndex
	StatementShowVariables
	StatementShowStatus
	StatementDescribe
	StatementTruncate
	StatementOptimize
	StatementCheck
	StatementAnalyze
	StatementSet
	StatementFoundRows
	StatementBegin
	StatementCommit
	StatementRollback
)

// IsMutation returns true if the statement changes rows.
func (k StatementKind) IsMutation() bool {
	switch k {
	case StatementInsert, StatementUpdate, StatementDelete, StatementReplace, StatementTruncate:
		return true
	}
	return false
}

// IsDDL returns true if the statement changes schema.
func (k StatementKind) IsDDL() bool {
	switch k {
	case StatementCreate, StatementAlter, StatementDrop, StatementDropIndex:
		return true
	}
	return false
}

// IsReadOnly returns true if the statement only reads.
func (k StatementKind) IsReadOnly() bool {
	switch k {
	case StatementSelect, StatementShowTables, StatementShowColumns, StatementShowIndex,
		StatementShowVariables, StatementShowStatus, StatementDescribe,
		StatementCheck, StatementAnalyze, StatementFoundRows:
		return true
	}
	return false
}

// IsTransactionControl returns true for BEGIN, COMMIT and ROLLBACK.
func (k StatementKind) IsTransactionControl() bool {
	return k == StatementBegin || k == StatementCommit || k == StatementRollback
}
