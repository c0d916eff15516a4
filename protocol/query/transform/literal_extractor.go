package transform

import (
	"errors"
	"strings"

	"github.com/maxpert/mylite/telemetry"
)

// ErrQueryTooLarge is returned when literal extraction exceeds the largest scan budget.
var ErrQueryTooLarge = errors.New("query too large to parse")

// QueryTooLargeError carries the size that exhausted the scan budget.
type QueryTooLargeError struct {
	Size   int
	Budget int
}

func (e *QueryTooLargeError) Error() string {
	return ErrQueryTooLarge.Error()
}

func (e *QueryTooLargeError) Is(target error) bool {
	return target == ErrQueryTooLarge
}

// MySQLCode maps the failure to ER_NET_PACKET_TOO_LARGE.
func (e *QueryTooLargeError) MySQLCode() (uint16, string) {
	return 1153, "08S01"
}

// ScanBudget bounds the work literal extraction may do on one statement.
// The budget starts at Initial and doubles on exhaustion up to Max.
type ScanBudget struct {
	Initial int
	Max     int
}

// ExtractParameters replaces every quoted string literal with a ? placeholder
// and returns the unescaped values in order of appearance.
//
// Example:
//
//	Input:  INSERT INTO t VALUES ('it''s', "a\nb", 3)
//	Output: INSERT INTO t VALUES (?, ?, 3)
//	Params: ["it's", "a<newline>b"]
//
// Backtick identifiers and comments are copied verbatim.
func ExtractParameters(sql string, budget ScanBudget) (string, []interface{}, error) {
	limit := budget.Initial
	if limit < 1 {
		limit = 1
	}
	for {
		out, params, ok := scanLiterals(sql, limit)
		if ok {
			return out, params, nil
		}
		if limit >= budget.Max {
			return "", nil, &QueryTooLargeError{Size: len(sql), Budget: limit}
		}
		limit *= 2
		if limit > budget.Max {
			limit = budget.Max
		}
		telemetry.ParamScanExpansionsTotal.Inc()
	}
}

// scanLiterals does one extraction pass; ok is false when more than limit
// bytes had to be examined.
func scanLiterals(sql string, limit int) (string, []interface{}, bool) {
	if len(sql) > limit {
		return "", nil, false
	}

	var out strings.Builder
	out.Grow(len(sql))
	var params []interface{}

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			value, end := readLiteral(sql, i)
			params = append(params, value)
			out.WriteByte('?')
			i = end
		case c == '`':
			end := closingQuote(sql, i)
			out.WriteString(sql[i:end])
			i = end
		case c == '#' || (c == '-' && strings.HasPrefix(sql[i:], "-- ")):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			out.WriteString(sql[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				out.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			out.WriteString(sql[i : i+end+4])
			i += end + 4
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), params, true
}

// readLiteral decodes the MySQL string literal opening at sql[open] and
// returns its value and the index just past the closing quote.
func readLiteral(sql string, open int) (string, int) {
	q := sql[open]
	var sb strings.Builder
	i := open + 1
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\\' && i+1 < len(sql):
			sb.WriteString(unescape(sql[i+1]))
			i += 2
		case c == q:
			if i+1 < len(sql) && sql[i+1] == q {
				sb.WriteByte(q)
				i += 2
				continue
			}
			return sb.String(), i + 1
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), len(sql)
}

// unescape decodes the character following a backslash. \% and \_ keep
// their backslash so LIKE patterns stay escaped.
func unescape(c byte) string {
	switch c {
	case '0':
		return "\x00"
	case 'b':
		return "\b"
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case 'Z':
		return "\x1a"
	case '%', '_':
		return "\\" + string(c)
	default:
		return string(c)
	}
}

// CountPlaceholders counts ? placeholders outside quotes.
func CountPlaceholders(sql string) int {
	n := 0
	for _, seg := range splitQuoted(sql) {
		if !seg.quoted {
			n += strings.Count(seg.text, "?")
		}
	}
	return n
}
