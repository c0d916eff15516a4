package rules

import "regexp"

var (
	startTransactionPattern = regexp.MustCompile(`(?is)^\s*(START\s+TRANSACTION|BEGIN)\b.*$`)
	commitWorkPattern       = regexp.MustCompile(`(?is)^\s*COMMIT(\s+WORK)?(\s+AND\s+(NO\s+)?CHAIN)?(\s+(NO\s+)?RELEASE)?\s*;?\s*$`)
	rollbackWorkPattern     = regexp.MustCompile(`(?is)^\s*ROLLBACK(\s+WORK)?(\s+AND\s+(NO\s+)?CHAIN)?(\s+(NO\s+)?RELEASE)?\s*;?\s*$`)
)

// TransactionSyntaxRule converts MySQL transaction syntax to SQLite
// MySQL: START TRANSACTION [READ ONLY | READ WRITE | WITH CONSISTENT SNAPSHOT], BEGIN WORK
// SQLite: BEGIN
type TransactionSyntaxRule struct{}

func (r *TransactionSyntaxRule) Name() string  { return "TransactionSyntax" }
func (r *TransactionSyntaxRule) Priority() int { return 5 }

func (r *TransactionSyntaxRule) ApplyPattern(sql string) (string, bool, error) {
	switch {
	case startTransactionPattern.MatchString(sql):
		return "BEGIN", sql != "BEGIN", nil
	case commitWorkPattern.MatchString(sql):
		return "COMMIT", sql != "COMMIT", nil
	case rollbackWorkPattern.MatchString(sql):
		return "ROLLBACK", sql != "ROLLBACK", nil
	}
	return sql, false, nil
}
