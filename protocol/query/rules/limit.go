package rules

import "regexp"

var limitOffsetPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\s*,\s*(\d+)`)

// LimitRule rewrites MySQL LIMIT offset, count to LIMIT count OFFSET offset.
type LimitRule struct{}

func (r *LimitRule) Name() string  { return "Limit" }
func (r *LimitRule) Priority() int { return 50 }

func (r *LimitRule) ApplyPattern(sql string) (string, bool, error) {
	if !limitOffsetPattern.MatchString(sql) {
		return sql, false, nil
	}
	return limitOffsetPattern.ReplaceAllString(sql, "LIMIT $2 OFFSET $1"), true, nil
}
