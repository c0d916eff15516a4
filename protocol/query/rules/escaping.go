package rules

import "strings"

// EscapingRule rewrites MySQL backslash escapes inside single-quoted
// literals into SQLite form. Only statements that keep their literals
// inline (CREATE / ALTER) need it; everything else has its literals
// extracted into parameters.
type EscapingRule struct{}

func (r *EscapingRule) Name() string  { return "Escaping" }
func (r *EscapingRule) Priority() int { return 60 }

func (r *EscapingRule) ApplyPattern(sql string) (string, bool, error) {
	if !strings.Contains(sql, `\`) {
		return sql, false, nil
	}

	var sb strings.Builder
	sb.Grow(len(sql))
	inQuote := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case !inQuote:
			if c == '\'' {
				inQuote = true
			}
			sb.WriteByte(c)
		case c == '\\' && i+1 < len(sql):
			i++
			switch n := sql[i]; n {
			case '\'':
				sb.WriteString("''")
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '0':
				sb.WriteByte(0)
			case '%', '_':
				sb.WriteByte('\\')
				sb.WriteByte(n)
			default:
				sb.WriteByte(n)
			}
		case c == '\'':
			if i+1 < len(sql) && sql[i+1] == '\'' {
				sb.WriteString("''")
				i++
				continue
			}
			inQuote = false
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}

	out := sb.String()
	return out, out != sql, nil
}
