package handlers

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/puzpuzpuz/xsync/v3"
)

// sqliteToMySQLType converts a SQLite declared type to the MySQL type
// reported by SHOW COLUMNS
func sqliteToMySQLType(sqliteType string) string {
	upper := strings.ToUpper(sqliteType)

	switch {
	case upper == "":
		return "text"
	case strings.Contains(upper, "INT"):
		switch {
		case strings.Contains(upper, "TINYINT"):
			return "tinyint"
		case strings.Contains(upper, "SMALLINT"):
			return "smallint"
		case strings.Contains(upper, "MEDIUMINT"):
			return "mediumint"
		case strings.Contains(upper, "BIGINT"):
			return "bigint"
		}
		return "int"
	case strings.Contains(upper, "VARCHAR"):
		return "varchar(255)"
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "TEXT"), strings.Contains(upper, "CLOB"):
		return "text"
	case strings.Contains(upper, "BLOB"):
		return "blob"
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"):
		return "float"
	case strings.Contains(upper, "DOUB"):
		return "double"
	case strings.Contains(upper, "DEC"), strings.Contains(upper, "NUMERIC"):
		return "decimal(10,0)"
	case strings.Contains(upper, "DATETIME"):
		return "datetime"
	case strings.Contains(upper, "DATE"):
		return "date"
	case strings.Contains(upper, "TIME"):
		return "time"
	}
	return "varchar(255)"
}

// likeGlobs caches compiled LIKE patterns. SHOW statements repeat the same
// few patterns for the life of a process.
var likeGlobs = xsync.NewMapOf[string, glob.Glob]()

// likeMatch reports whether name matches a MySQL LIKE pattern, ignoring
// case. An empty pattern matches everything.
func likeMatch(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	pattern = strings.ToLower(pattern)

	g, ok := likeGlobs.Load(pattern)
	if !ok {
		var err error
		g, err = glob.Compile(likeToGlob(pattern))
		if err != nil {
			return false
		}
		likeGlobs.Store(pattern, g)
	}
	return g.Match(strings.ToLower(name))
}

// likeToGlob translates LIKE wildcards: % → *, _ → ?, \% and \_ are literal.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			if i+1 < len(pattern) {
				i++
				writeGlobLiteral(&sb, pattern[i])
			} else {
				writeGlobLiteral(&sb, c)
			}
		case '%':
			sb.WriteByte('*')
		case '_':
			sb.WriteByte('?')
		default:
			writeGlobLiteral(&sb, c)
		}
	}
	return sb.String()
}

func writeGlobLiteral(sb *strings.Builder, c byte) {
	switch c {
	case '*', '?', '[', ']', '{', '}', '\\', '!':
		sb.WriteByte('\\')
	}
	sb.WriteByte(c)
}

// hasPercent reports whether pattern has an unescaped %.
func hasPercent(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '%':
			return true
		}
	}
	return false
}

// unescapeLike removes LIKE escapes from a pattern without wildcards.
func unescapeLike(pattern string) string {
	return strings.NewReplacer(`\%`, "%", `\_`, "_", `\\`, `\`).Replace(pattern)
}
