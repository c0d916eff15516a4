package query

import (
	"regexp"
	"strings"

	"github.com/maxpert/mylite/common"
	"github.com/rs/zerolog/log"
	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	fromTablePattern   = regexp.MustCompile("(?i)\\b(?:FROM|IN)\\s+(`[^`]+`|[^\\s;]+)")
	likePattern        = regexp.MustCompile(`(?is)\bLIKE\s+'((?:[^'\\]|\\.|'')*)'`)
	whereEqualsPattern = regexp.MustCompile("(?is)\\bWHERE\\s+`?(\\w+)`?\\s*=\\s*(?:'((?:[^'\\\\]|\\\\.|'')*)'|\"([^\"]*)\"|([^\\s;]+))")
	describePattern    = regexp.MustCompile("(?i)^(?:DESCRIBE|DESC)\\s+(`[^`]+`|[^\\s;]+)")
	tableListPattern   = regexp.MustCompile(`(?is)^(?:CHECK|ANALYZE|OPTIMIZE|TRUNCATE)\s+(?:NO_WRITE_TO_BINLOG\s+|LOCAL\s+)?(?:TABLE\s+)?(.+?)\s*;?\s*$`)
	tableOptionWords   = regexp.MustCompile(`(?i)\s+(QUICK|FAST|MEDIUM|EXTENDED|CHANGED|FOR\s+UPGRADE)\b.*$`)
	showFullPattern    = regexp.MustCompile(`(?i)^SHOW\s+FULL\b`)
)

// extractMeta fills ctx.Meta for statements answered by the result formatter.
// SHOW and DESCRIBE go through the MySQL parser first; the regex fallback
// covers syntax it rejects.
func extractMeta(parser *sqlparser.Parser, ctx *QueryContext) {
	body := StripLeadingComments(ctx.SQL)

	switch ctx.Kind {
	case common.StatementShowTables, common.StatementShowColumns, common.StatementShowIndex,
		common.StatementShowStatus, common.StatementShowVariables:
		if parser != nil && showMetaFromAST(parser, body, &ctx.Meta) {
			return
		}
		showMetaFromText(body, &ctx.Meta)

	case common.StatementDescribe:
		if parser != nil {
			if stmt, err := parser.Parse(body); err == nil {
				if ex, ok := stmt.(*sqlparser.ExplainTab); ok {
					ctx.Meta.Table = ex.Table.Name.String()
					return
				}
			}
		}
		if m := describePattern.FindStringSubmatch(body); m != nil {
			ctx.Meta.Table = baseTableName(m[1])
		}

	case common.StatementCheck, common.StatementAnalyze, common.StatementOptimize, common.StatementTruncate:
		if m := tableListPattern.FindStringSubmatch(body); m != nil {
			list := tableOptionWords.ReplaceAllString(m[1], "")
			for _, t := range strings.Split(list, ",") {
				if t = strings.TrimSpace(t); t != "" {
					ctx.Meta.Tables = append(ctx.Meta.Tables, baseTableName(t))
				}
			}
			if len(ctx.Meta.Tables) > 0 {
				ctx.Meta.Table = ctx.Meta.Tables[0]
			}
		}
	}
}

func showMetaFromAST(parser *sqlparser.Parser, sql string, meta *StatementMeta) bool {
	stmt, err := parser.Parse(sql)
	if err != nil {
		log.Debug().Err(err).Str("sql", sql).Msg("MySQL parser rejected SHOW statement, using text match")
		return false
	}
	show, ok := stmt.(*sqlparser.Show)
	if !ok {
		return false
	}
	basic, ok := show.Internal.(*sqlparser.ShowBasic)
	if !ok {
		return false
	}

	meta.Full = basic.Full
	if !basic.Tbl.IsEmpty() {
		meta.Table = basic.Tbl.Name.String()
	}
	if basic.Filter != nil {
		meta.Like = basic.Filter.Like
		if cmp, ok := basic.Filter.Filter.(*sqlparser.ComparisonExpr); ok && cmp.Operator == sqlparser.EqualOp {
			if col, ok := cmp.Left.(*sqlparser.ColName); ok {
				if lit, ok := cmp.Right.(*sqlparser.Literal); ok {
					meta.WhereColumn = col.Name.String()
					meta.WhereValue = lit.Val
				}
			}
		}
	}
	return true
}

func showMetaFromText(sql string, meta *StatementMeta) {
	meta.Full = showFullPattern.MatchString(sql)
	if m := fromTablePattern.FindStringSubmatch(sql); m != nil {
		meta.Table = baseTableName(m[1])
	}
	if m := likePattern.FindStringSubmatch(sql); m != nil {
		meta.Like = unescapeLike(m[1])
	}
	if m := whereEqualsPattern.FindStringSubmatch(sql); m != nil {
		meta.WhereColumn = m[1]
		switch {
		case m[2] != "":
			meta.WhereValue = unescapeLike(m[2])
		case m[3] != "":
			meta.WhereValue = m[3]
		default:
			meta.WhereValue = m[4]
		}
	}
}

// unescapeLike decodes quote escapes of a pattern literal. Backslash escapes
// of LIKE wildcards stay in place.
func unescapeLike(s string) string {
	s = strings.ReplaceAll(s, "''", "'")
	return strings.ReplaceAll(s, `\'`, "'")
}

func baseTableName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "`")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = strings.Trim(name[i+1:], "`")
	}
	return name
}
