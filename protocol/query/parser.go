package query

import (
	"errors"
	"regexp"
	"strings"

	"github.com/maxpert/mylite/common"
)

var (
	// ErrUnknownQueryType is returned when no statement pattern matches.
	ErrUnknownQueryType = errors.New("unknown query type")

	// ErrUnsupportedShow is returned for SHOW variants without a formatter.
	ErrUnsupportedShow = errors.New("unsupported SHOW statement")
)

type kindPattern struct {
	kind    common.StatementKind
	pattern *regexp.Regexp
}

// kindPatterns is ordered; the first match wins.
var kindPatterns = []kindPattern{
	{common.StatementFoundRows, regexp.MustCompile(`(?i)^SELECT\s+FOUND_ROWS\s*\(\s*\)`)},
	{common.StatementSelect, regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)},
	{common.StatementInsert, regexp.MustCompile(`(?i)^INSERT\b`)},
	{common.StatementUpdate, regexp.MustCompile(`(?i)^UPDATE\b`)},
	{common.StatementDelete, regexp.MustCompile(`(?i)^DELETE\b`)},
	{common.StatementReplace, regexp.MustCompile(`(?i)^REPLACE\b`)},
	{common.StatementCreate, regexp.MustCompile(`(?i)^CREATE\b`)},
	{common.StatementAlter, regexp.MustCompile(`(?i)^ALTER\b`)},
	{common.StatementDropIndex, regexp.MustCompile(`(?i)^DROP\s+INDEX\b`)},
	{common.StatementDrop, regexp.MustCompile(`(?i)^DROP\b`)},
	{common.StatementShowStatus, regexp.MustCompile(`(?i)^SHOW\s+TABLE\s+STATUS\b`)},
	{common.StatementShowColumns, regexp.MustCompile(`(?i)^SHOW\s+(FULL\s+)?(COLUMNS|FIELDS)\b`)},
	{common.StatementShowIndex, regexp.MustCompile(`(?i)^SHOW\s+(INDEX|INDEXES|KEYS)\b`)},
	{common.StatementShowVariables, regexp.MustCompile(`(?i)^SHOW\s+((GLOBAL|SESSION|LOCAL)\s+)?(VARIABLES|STATUS)\b`)},
	{common.StatementShowTables, regexp.MustCompile(`(?i)^SHOW\s+(FULL\s+)?TABLES\b`)},
	{common.StatementDescribe, regexp.MustCompile(`(?i)^(DESCRIBE|DESC)\s+[^\s;]`)},
	{common.StatementTruncate, regexp.MustCompile(`(?i)^TRUNCATE\b`)},
	{common.StatementOptimize, regexp.MustCompile(`(?i)^OPTIMIZE\b`)},
	{common.StatementCheck, regexp.MustCompile(`(?i)^CHECK\s+TABLE\b`)},
	{common.StatementAnalyze, regexp.MustCompile(`(?i)^ANALYZE\b`)},
	{common.StatementSet, regexp.MustCompile(`(?i)^SET\b`)},
	{common.StatementBegin, regexp.MustCompile(`(?i)^(BEGIN|START\s+TRANSACTION)\b`)},
	{common.StatementCommit, regexp.MustCompile(`(?i)^COMMIT\b`)},
	{common.StatementRollback, regexp.MustCompile(`(?i)^ROLLBACK\b`)},
}

var (
	showPattern      = regexp.MustCompile(`(?i)^SHOW\b`)
	dropIndexPattern = regexp.MustCompile("(?is)^DROP\\s+INDEX\\s+(?:IF\\s+EXISTS\\s+)?(`[^`]+`|\\S+)\\s+ON\\s+(`[^`]+`|[^\\s;]+)(.*?)\\s*;?\\s*$")
)

// Classify assigns a StatementKind to sql. DROP INDEX i ON t is rewritten
// to ALTER TABLE t DROP INDEX i and classified as an ALTER; the returned
// string is the statement to continue with.
func Classify(sql string) (common.StatementKind, string, error) {
	body := StripLeadingComments(sql)

	for _, kp := range kindPatterns {
		if !kp.pattern.MatchString(body) {
			continue
		}
		if kp.kind == common.StatementDropIndex {
			m := dropIndexPattern.FindStringSubmatch(body)
			if m == nil {
				return common.StatementUnknown, sql, ErrUnknownQueryType
			}
			// ALGORITHM= / LOCK= options trail the table name and mean nothing to SQLite
			return common.StatementAlter, "ALTER TABLE " + m[2] + " DROP INDEX " + m[1], nil
		}
		return kp.kind, sql, nil
	}

	if showPattern.MatchString(body) {
		return common.StatementUnknown, sql, ErrUnsupportedShow
	}
	return common.StatementUnknown, sql, ErrUnknownQueryType
}

// StripLeadingComments removes whitespace and comments before the first keyword.
func StripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+2:])
		case strings.HasPrefix(s, "--") || strings.HasPrefix(s, "#"):
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+1:])
		case strings.HasPrefix(s, "("):
			// (SELECT ...) UNION (SELECT ...)
			s = strings.TrimSpace(s[1:])
		default:
			return s
		}
	}
}
