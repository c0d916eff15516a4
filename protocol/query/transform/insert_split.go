package transform

import (
	"regexp"
	"strings"
)

var valuesKeyword = regexp.MustCompile(`(?i)\bVALUES?\b`)

// SplitMultiRowInsert splits INSERT ... VALUES (...), (...) into one
// statement per tuple. Parameters are partitioned by the placeholders each
// tuple holds; placeholders before VALUES or after the last tuple are
// repeated for every statement. Statements with a single tuple, or that
// are not VALUES inserts, are returned unchanged.
func SplitMultiRowInsert(stmt TranspiledStatement) []TranspiledStatement {
	valuesAt := valuesClause(stmt.SQL)
	if valuesAt == nil {
		return []TranspiledStatement{stmt}
	}

	prefix := stmt.SQL[:valuesAt[1]]
	rest := stmt.SQL[valuesAt[1]:]

	var tuples []string
	pos := 0
	for {
		open := skipSpaces(rest, pos)
		if open >= len(rest) || rest[open] != '(' {
			break
		}
		closeIdx := matchingParen(rest, open)
		if closeIdx < 0 {
			return []TranspiledStatement{stmt}
		}
		tuples = append(tuples, rest[open:closeIdx+1])
		pos = skipSpaces(rest, closeIdx+1)
		if pos < len(rest) && rest[pos] == ',' {
			pos++
			continue
		}
		break
	}
	if len(tuples) < 2 {
		return []TranspiledStatement{stmt}
	}
	suffix := rest[pos:]

	prefixParams := CountPlaceholders(prefix)
	suffixParams := CountPlaceholders(suffix)
	tupleStart := prefixParams
	tupleParamsTotal := len(stmt.Params) - prefixParams - suffixParams
	if tupleParamsTotal < 0 {
		return []TranspiledStatement{stmt}
	}

	out := make([]TranspiledStatement, 0, len(tuples))
	offset := tupleStart
	for _, tuple := range tuples {
		n := CountPlaceholders(tuple)
		if offset+n > len(stmt.Params)-suffixParams {
			return []TranspiledStatement{stmt}
		}
		params := make([]interface{}, 0, prefixParams+n+suffixParams)
		params = append(params, stmt.Params[:prefixParams]...)
		params = append(params, stmt.Params[offset:offset+n]...)
		params = append(params, stmt.Params[len(stmt.Params)-suffixParams:]...)
		offset += n

		sql := strings.TrimRight(prefix, " ") + " " + tuple
		if s := strings.TrimSpace(suffix); s != "" {
			sql += " " + s
		}
		out = append(out, TranspiledStatement{SQL: sql, Params: params})
	}
	return out
}

// valuesClause returns the location of the VALUES keyword that opens the
// tuple list. A column named value in the column list is not followed by
// a tuple and is skipped.
func valuesClause(s string) []int {
	base := 0
	for _, seg := range splitQuoted(s) {
		if !seg.quoted {
			for _, loc := range valuesKeyword.FindAllStringIndex(seg.text, -1) {
				end := base + loc[1]
				if next := skipSpaces(s, end); next < len(s) && s[next] == '(' {
					return []int{base + loc[0], end}
				}
			}
		}
		base += len(seg.text)
	}
	return nil
}

func skipSpaces(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}
