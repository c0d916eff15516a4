package rules

import "regexp"

var truncatePattern = regexp.MustCompile("(?is)^\\s*TRUNCATE\\s+(?:TABLE\\s+)?(`[^`]+`|[^\\s;]+)\\s*;?\\s*$")

// TruncateRule rewrites TRUNCATE [TABLE] t, which SQLite lacks, to DELETE FROM t.
// SQLite applies its truncate optimization to an unqualified DELETE.
type TruncateRule struct{}

func (r *TruncateRule) Name() string  { return "Truncate" }
func (r *TruncateRule) Priority() int { return 12 }

func (r *TruncateRule) ApplyPattern(sql string) (string, bool, error) {
	m := truncatePattern.FindStringSubmatch(sql)
	if m == nil {
		return sql, false, nil
	}
	return "DELETE FROM " + m[1], true, nil
}
