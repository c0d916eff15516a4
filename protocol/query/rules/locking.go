package rules

import "regexp"

var lockingClausePattern = regexp.MustCompile(`(?i)\s+(FOR\s+(UPDATE|SHARE)(\s+OF\s+\w+(\s*,\s*\w+)*)?(\s+(NOWAIT|SKIP\s+LOCKED))?|LOCK\s+IN\s+SHARE\s+MODE)\b`)

// LockingRule removes row locking clauses. SQLite locks the whole
// database for writers, so they carry no meaning.
type LockingRule struct{}

func (r *LockingRule) Name() string  { return "Locking" }
func (r *LockingRule) Priority() int { return 40 }

func (r *LockingRule) ApplyPattern(sql string) (string, bool, error) {
	if !lockingClausePattern.MatchString(sql) {
		return sql, false, nil
	}
	return lockingClausePattern.ReplaceAllString(sql, ""), true, nil
}
