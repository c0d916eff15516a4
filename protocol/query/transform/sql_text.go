package transform

import "strings"

// segment is a run of statement text that is either inside a quoted
// literal/identifier (quotes included) or outside of one.
type segment struct {
	text   string
	quoted bool
}

// splitQuoted cuts s into alternating quoted and unquoted segments.
// Single quotes, double quotes and backticks are recognised; backslash
// escapes and doubled quote characters stay inside the literal.
func splitQuoted(s string) []segment {
	var segs []segment
	start := 0
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '\'' && c != '"' && c != '`' {
			i++
			continue
		}
		if i > start {
			segs = append(segs, segment{text: s[start:i]})
		}
		end := closingQuote(s, i)
		segs = append(segs, segment{text: s[i:end], quoted: true})
		i = end
		start = end
	}
	if start < len(s) {
		segs = append(segs, segment{text: s[start:]})
	}
	return segs
}

// closingQuote returns the index just past the literal that opens at s[open].
// An unterminated literal runs to the end of s.
func closingQuote(s string, open int) int {
	q := s[open]
	i := open + 1
	for i < len(s) {
		switch {
		case s[i] == '\\' && q != '`':
			i += 2
		case s[i] == q:
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return len(s)
}

// mapUnquoted applies fn to every unquoted segment of s.
func mapUnquoted(s string, fn func(string) string) string {
	var sb strings.Builder
	for _, seg := range splitQuoted(s) {
		if seg.quoted {
			sb.WriteString(seg.text)
		} else {
			sb.WriteString(fn(seg.text))
		}
	}
	return sb.String()
}

// splitTopLevel splits s on sep where sep is outside quotes and parentheses.
// Pieces are trimmed; empty pieces are dropped.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = closingQuote(s, i) - 1
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			if p := strings.TrimSpace(s[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// matchingParen returns the index of the ')' closing the '(' at s[open],
// or -1 when the parentheses are unbalanced.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = closingQuote(s, i) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripBackticks removes identifier quoting outside string literals.
func stripBackticks(s string) string {
	var sb strings.Builder
	for _, seg := range splitQuoted(s) {
		if seg.quoted && strings.HasPrefix(seg.text, "`") {
			sb.WriteString(strings.ReplaceAll(strings.Trim(seg.text, "`"), "``", "`"))
			continue
		}
		sb.WriteString(seg.text)
	}
	return sb.String()
}

// unquoteIdent strips one level of backtick or double quote identifier quoting.
func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// collapseSpaces folds runs of whitespace outside quotes into a single space.
func collapseSpaces(s string) string {
	return strings.TrimSpace(mapUnquoted(s, func(part string) string {
		lead := len(part) > 0 && isSpace(part[0])
		trail := len(part) > 0 && isSpace(part[len(part)-1])
		out := strings.Join(strings.Fields(part), " ")
		if out == "" {
			if lead || trail {
				return " "
			}
			return ""
		}
		if lead {
			out = " " + out
		}
		if trail {
			out += " "
		}
		return out
	}))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
