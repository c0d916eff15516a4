package transform

import (
	"regexp"
	"sort"
	"strings"
)

// mysqlToSQLiteTypes maps lower-case MySQL type tokens to SQLite storage types
var mysqlToSQLiteTypes = map[string]string{
	"tinyint":   "INTEGER",
	"smallint":  "INTEGER",
	"mediumint": "INTEGER",
	"int":       "INTEGER",
	"integer":   "INTEGER",
	"bigint":    "INTEGER",
	"bool":      "INTEGER",
	"boolean":   "INTEGER",
	"bit":       "INTEGER",

	"float":            "REAL",
	"double":           "REAL",
	"double precision": "REAL",
	"real":             "REAL",
	"decimal":          "REAL",
	"dec":              "REAL",
	"numeric":          "REAL",
	"fixed":            "REAL",

	"date":       "TEXT",
	"datetime":   "TEXT",
	"timestamp":  "TEXT",
	"time":       "TEXT",
	"year":       "TEXT",
	"char":       "TEXT",
	"varchar":    "TEXT",
	"nchar":      "TEXT",
	"nvarchar":   "TEXT",
	"tinytext":   "TEXT",
	"text":       "TEXT",
	"mediumtext": "TEXT",
	"longtext":   "TEXT",
	"set":        "TEXT",
	"json":       "TEXT",

	"tinyblob":   "BLOB",
	"blob":       "BLOB",
	"mediumblob": "BLOB",
	"longblob":   "BLOB",
	"binary":     "BLOB",
	"varbinary":  "BLOB",
}

var (
	typeTokenPattern = buildTypeTokenPattern()
	enumPattern      = regexp.MustCompile(`(?i)^\s*enum\s*\(`)

	unsignedPattern      = regexp.MustCompile(`(?i)\s*\b(unsigned|zerofill)\b`)
	charsetPattern       = regexp.MustCompile(`(?i)\s*\b(character\s+set|charset)\s*=?\s*\w+`)
	collatePattern       = regexp.MustCompile(`(?i)\s*\bcollate\s*=?\s*\w+`)
	commentPrefixPattern = regexp.MustCompile(`(?i)\s*\bcomment\s*$`)
	onUpdatePattern      = regexp.MustCompile(`(?i)\s*\bon\s+update\s+(current_timestamp|now|localtimestamp)\b(\s*\(\s*\d*\s*\))?`)
	autoIncrementPattern = regexp.MustCompile(`(?i)\s*\bauto_increment\b`)
	primaryKeyPattern    = regexp.MustCompile(`(?i)\s*\bprimary\s+key\b`)
	uniqueKeyPattern     = regexp.MustCompile(`(?i)\bunique\s+key\b`)
	currentStampPattern  = regexp.MustCompile(`(?i)\b(current_timestamp|localtimestamp)\b(\s*\(\s*\d*\s*\))?|\bnow\s*\(\s*\d*\s*\)`)
	currentTimePattern   = regexp.MustCompile(`(?i)\bcurrent_time\b(\s*\(\s*\d*\s*\))?`)
	currentDatePattern   = regexp.MustCompile(`(?i)\bcurrent_date\b(\s*\(\s*\))?`)
	keywordPattern       = regexp.MustCompile(`(?i)\b(not|null|default|primary|key|unique|autoincrement|check|constraint|references)\b`)
	notNullPattern       = regexp.MustCompile(`(?i)\bnot\s+null\b`)
	defaultPattern       = regexp.MustCompile(`(?i)\bdefault\b`)
)

const (
	zeroDateTime = "'0000-00-00 00:00:00'"
	zeroTime     = "'00:00:00'"
	zeroDate     = "'0000-00-00'"
)

// buildTypeTokenPattern builds the leading-type matcher with longer
// alternatives first so "bigint" never matches as "big" + "int".
func buildTypeTokenPattern() *regexp.Regexp {
	names := make([]string, 0, len(mysqlToSQLiteTypes))
	for name := range mysqlToSQLiteTypes {
		names = append(names, strings.ReplaceAll(regexp.QuoteMeta(name), " ", `\s+`))
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return regexp.MustCompile(`(?i)^\s*(` + strings.Join(names, "|") + `)\b(\s*\([^)]*\))?`)
}

// SQLiteType returns the SQLite storage type for a MySQL type token.
func SQLiteType(mysqlType string) (string, bool) {
	t, ok := mysqlToSQLiteTypes[strings.Join(strings.Fields(strings.ToLower(mysqlType)), " ")]
	return t, ok
}

// MapColumnDefinition converts the MySQL definition of column (everything
// after the column name) into an equivalent SQLite definition for use in
// ALTER TABLE and recreated tables. Temporal defaults become zero literals.
func MapColumnDefinition(column, definition string) string {
	return mapDefinition(column, definition, false)
}

// MapCreateColumnDefinition is MapColumnDefinition for CREATE TABLE, where
// SQLite accepts CURRENT_TIMESTAMP style defaults.
func MapCreateColumnDefinition(column, definition string) string {
	return mapDefinition(column, definition, true)
}

// AddColumnDefinition maps definition for ALTER TABLE ... ADD COLUMN.
// SQLite refuses to add a NOT NULL column without a default, so one
// matching the storage class is appended when missing.
func AddColumnDefinition(column, definition string) string {
	mapped := MapColumnDefinition(column, definition)
	if !hasUnquoted(mapped, notNullPattern) || hasUnquoted(mapped, defaultPattern) || hasUnquoted(mapped, primaryKeyPattern) {
		return mapped
	}
	switch {
	case strings.HasPrefix(mapped, "INTEGER"), strings.HasPrefix(mapped, "REAL"):
		return mapped + " DEFAULT 0"
	default:
		return mapped + " DEFAULT ''"
	}
}

func mapDefinition(column, definition string, keepTemporal bool) string {
	def := strings.TrimSpace(definition)

	var head string
	if loc := enumPattern.FindStringIndex(def); loc != nil {
		open := loc[1] - 1
		end := matchingParen(def, open)
		if end < 0 {
			end = len(def) - 1
		}
		// one spelling of the list, so rewrites of an unchanged enum compare equal
		values := splitTopLevel(def[open+1:end], ',')
		head = "TEXT CHECK (" + column + " IN (" + strings.Join(values, ", ") + "))"
		def = def[end+1:]
	} else if m := typeTokenPattern.FindStringSubmatchIndex(def); m != nil {
		token := def[m[2]:m[3]]
		mapped, _ := SQLiteType(token)
		head = mapped
		def = def[m[1]:]
	}

	def = stripComments(def)
	def = mapUnquoted(def, func(part string) string {
		part = unsignedPattern.ReplaceAllString(part, "")
		part = charsetPattern.ReplaceAllString(part, "")
		part = collatePattern.ReplaceAllString(part, "")
		part = onUpdatePattern.ReplaceAllString(part, "")
		part = uniqueKeyPattern.ReplaceAllString(part, "UNIQUE")
		if keepTemporal {
			part = currentStampPattern.ReplaceAllString(part, "CURRENT_TIMESTAMP")
			part = currentTimePattern.ReplaceAllString(part, "CURRENT_TIME")
			part = currentDatePattern.ReplaceAllString(part, "CURRENT_DATE")
		} else {
			part = currentStampPattern.ReplaceAllString(part, zeroDateTime)
			part = currentTimePattern.ReplaceAllString(part, zeroTime)
			part = currentDatePattern.ReplaceAllString(part, zeroDate)
		}
		return part
	})

	autoIncrement := hasUnquoted(def, autoIncrementPattern)
	if autoIncrement {
		def = mapUnquoted(def, func(part string) string {
			part = autoIncrementPattern.ReplaceAllString(part, "")
			return primaryKeyPattern.ReplaceAllString(part, "")
		})
	}

	def = mapUnquoted(def, func(part string) string {
		return keywordPattern.ReplaceAllStringFunc(part, strings.ToUpper)
	})

	out := strings.TrimSpace(head + " " + collapseSpaces(def))
	if autoIncrement {
		out += " PRIMARY KEY AUTOINCREMENT"
	}
	return collapseSpaces(out)
}

// stripComments removes COMMENT '...' clauses, literal included.
func stripComments(def string) string {
	segs := splitQuoted(def)
	var sb strings.Builder
	for i := 0; i < len(segs); i++ {
		seg := segs[i]
		if !seg.quoted && i+1 < len(segs) && segs[i+1].quoted && commentPrefixPattern.MatchString(seg.text) {
			sb.WriteString(commentPrefixPattern.ReplaceAllString(seg.text, " "))
			i++
			continue
		}
		sb.WriteString(seg.text)
	}
	return sb.String()
}

func hasUnquoted(s string, re *regexp.Regexp) bool {
	for _, seg := range splitQuoted(s) {
		if !seg.quoted && re.MatchString(seg.text) {
			return true
		}
	}
	return false
}
