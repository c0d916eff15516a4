package rules

import "regexp"

var (
	leadingStraightJoin   = regexp.MustCompile(`(?i)\b(SELECT\s+(?:ALL\s+|DISTINCT\s+|DISTINCTROW\s+)?)STRAIGHT_JOIN\s+`)
	straightJoinPattern   = regexp.MustCompile(`(?i)\bSTRAIGHT_JOIN\b`)
	distinctRowPattern    = regexp.MustCompile(`(?i)\bDISTINCTROW\b`)
	selectModifierPattern = regexp.MustCompile(`(?i)\s*\b(SQL_CALC_FOUND_ROWS|SQL_NO_CACHE|SQL_CACHE|SQL_SMALL_RESULT|SQL_BIG_RESULT|SQL_BUFFER_RESULT|HIGH_PRIORITY|LOW_PRIORITY|DELAYED)\b`)
)

// SelectModifiersRule drops MySQL optimizer and priority modifiers.
// STRAIGHT_JOIN between tables becomes a plain JOIN.
type SelectModifiersRule struct{}

func (r *SelectModifiersRule) Name() string  { return "SelectModifiers" }
func (r *SelectModifiersRule) Priority() int { return 30 }

func (r *SelectModifiersRule) ApplyPattern(sql string) (string, bool, error) {
	out := leadingStraightJoin.ReplaceAllString(sql, "$1")
	out = straightJoinPattern.ReplaceAllString(out, "JOIN")
	out = distinctRowPattern.ReplaceAllString(out, "DISTINCT")
	out = selectModifierPattern.ReplaceAllString(out, "")
	return out, out != sql, nil
}
