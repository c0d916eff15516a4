package rules

import "regexp"

var replaceIntoPattern = regexp.MustCompile(`(?i)^(\s*)REPLACE\s+(?:(?:LOW_PRIORITY|DELAYED)\s+)?(INTO\s+)?`)

type ReplaceIntoRule struct{}

func (r *ReplaceIntoRule) Name() string  { return "ReplaceInto" }
func (r *ReplaceIntoRule) Priority() int { return 11 }

func (r *ReplaceIntoRule) ApplyPattern(sql string) (string, bool, error) {
	if !replaceIntoPattern.MatchString(sql) {
		return sql, false, nil
	}
	return replaceIntoPattern.ReplaceAllString(sql, "${1}INSERT OR REPLACE INTO "), true, nil
}
