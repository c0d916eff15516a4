package rules

import "regexp"

var optimizePattern = regexp.MustCompile(`(?is)^\s*OPTIMIZE\b.*$`)

// OptimizeRule maps OPTIMIZE [NO_WRITE_TO_BINLOG | LOCAL] TABLE ... to VACUUM.
// VACUUM rebuilds the whole database file; there is no per-table form.
type OptimizeRule struct{}

func (r *OptimizeRule) Name() string  { return "Optimize" }
func (r *OptimizeRule) Priority() int { return 13 }

func (r *OptimizeRule) ApplyPattern(sql string) (string, bool, error) {
	if !optimizePattern.MatchString(sql) {
		return sql, false, nil
	}
	return "VACUUM", true, nil
}
