package rules

import "regexp"

var insertIgnorePattern = regexp.MustCompile(`(?i)^(\s*)INSERT\s+(?:(?:LOW_PRIORITY|DELAYED|HIGH_PRIORITY)\s+)?IGNORE\s+(INTO\s+)?`)

type InsertIgnoreRule struct{}

func (r *InsertIgnoreRule) Name() string  { return "InsertIgnore" }
func (r *InsertIgnoreRule) Priority() int { return 10 }

func (r *InsertIgnoreRule) ApplyPattern(sql string) (string, bool, error) {
	if !insertIgnorePattern.MatchString(sql) {
		return sql, false, nil
	}
	return insertIgnorePattern.ReplaceAllString(sql, "${1}INSERT OR IGNORE INTO "), true, nil
}
