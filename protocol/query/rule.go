package query

// Rule is a token level rewrite applied to literal-free statement text.
type Rule interface {
	Name() string
	Priority() int
	ApplyPattern(sql string) (string, bool, error)
}

type RuleSet []Rule

func (rs RuleSet) Len() int           { return len(rs) }
func (rs RuleSet) Less(i, j int) bool { return rs[i].Priority() < rs[j].Priority() }
func (rs RuleSet) Swap(i, j int)      { rs[i], rs[j] = rs[j], rs[i] }
