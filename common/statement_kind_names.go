// All conversions between StatementKind and its textual name go through
// this file. Names are used as metric labels and in log fields.
package common

import "fmt"

var (
	kindToName = map[StatementKind]string{
		StatementUnknown:       "unknown",
		StatementSelect:        "select",
		StatementInsert:        "insert",
		StatementUpdate:        "update",
		StatementDelete:        "delete",
		StatementReplace:       "replace",
		StatementCreate:        "create",
		StatementAlter:         "alter",
		StatementDrop:          "drop",
		StatementDropIndex:     "drop_index",
		StatementShowTables:    "show_tables",
		StatementShowColumns:   "show_columns",
		StatementShowIndex:     "show_index",
		StatementShowVariables: "show_variables",
		StatementShowStatus:    "show_status",
		StatementDescribe:      "describe",
		StatementTruncate:      "truncate",
		StatementOptimize:      "optimize",
		StatementCheck:         "check",
		StatementAnalyze:       "analyze",
		StatementSet:           "set",
		StatementFoundRows:     "found_rows",
		StatementBegin:         "begin",
		StatementCommit:        "commit",
		StatementRollback:      "rollback",
	}

	nameToKind = func() map[string]StatementKind {
		m := make(map[string]StatementKind, len(kindToName))
		for k, n := range kindToName {
			m[n] = k
		}
		return m
	}()
)

// String returns the lower-case name of the kind.
func (k StatementKind) String() string {
	if n, ok := kindToName[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseStatementKind converts a name produced by String back into a kind.
// Returns false if the name is unknown.
func ParseStatementKind(name string) (StatementKind, bool) {
	k, ok := nameToKind[name]
	return k, ok
}
