package rules

import "regexp"

var indexHintPattern = regexp.MustCompile(`(?i)\s+(FORCE|USE|IGNORE)\s+(INDEX|KEY)(\s+FOR\s+(JOIN|ORDER\s+BY|GROUP\s+BY))?\s*\([^)]*\)`)

type IndexHintsRule struct{}

func (r *IndexHintsRule) Name() string  { return "IndexHints" }
func (r *IndexHintsRule) Priority() int { return 20 }

func (r *IndexHintsRule) ApplyPattern(sql string) (string, bool, error) {
	if !indexHintPattern.MatchString(sql) {
		return sql, false, nil
	}
	out := indexHintPattern.ReplaceAllString(sql, "")
	return out, out != sql, nil
}
