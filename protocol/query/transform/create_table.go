package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/mylite/telemetry"
	"github.com/rs/zerolog/log"
	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	createIndexPattern = regexp.MustCompile(`(?is)^\s*CREATE\s+(UNIQUE\s+|FULLTEXT\s+|SPATIAL\s+)?INDEX\s+(\S+)\s+(?:USING\s+\w+\s+)?ON\s+([^\s(]+)\s*(\(.*\))[^)]*$`)
	createTablePattern = regexp.MustCompile(`(?is)^\s*CREATE\s+(TEMPORARY\s+)?TABLE\s+(IF\s+NOT\s+EXISTS\s+)?([^\s(]+)\s*\(`)
	enforcedPattern    = regexp.MustCompile(`(?i)\s+(not\s+)?enforced\b`)
	versionComment     = regexp.MustCompile(`/\*!\d*\s*(.*?)\s*\*/`)
)

// CreateRewriter transforms MySQL CREATE TABLE / CREATE INDEX to SQLite form:
//   - Drops table options (ENGINE, CHARSET, COLLATE, AUTO_INCREMENT=n)
//   - Maps every column definition through the type mapper
//   - Keeps PRIMARY KEY inline unless an AUTO_INCREMENT column absorbs it
//   - Extracts KEY/UNIQUE/FULLTEXT/SPATIAL definitions into CREATE INDEX
//     statements with table-prefixed names, prefix lengths stripped
//
// Results are cached by XXH64 of the input statement.
type CreateRewriter struct {
	parser *sqlparser.Parser
	cache  *lru.Cache[uint64, []string]
}

// NewCreateRewriter creates a CreateRewriter keeping up to cacheSize results
func NewCreateRewriter(cacheSize int) (*CreateRewriter, error) {
	p, err := sqlparser.New(sqlparser.Options{})
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[uint64, []string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &CreateRewriter{parser: p, cache: cache}, nil
}

// Rewrite rewrites a CREATE TABLE or CREATE INDEX statement. Any other
// CREATE returns ErrRuleNotApplicable.
func (r *CreateRewriter) Rewrite(sql string) (*RewriteResult, error) {
	hash := xxhash.Sum64String(sql)
	if cached, ok := r.cache.Get(hash); ok {
		telemetry.RewriteCacheTotal.With("hit").Inc()
		return &RewriteResult{Statements: append([]string(nil), cached...)}, nil
	}
	telemetry.RewriteCacheTotal.With("miss").Inc()

	sql = versionComment.ReplaceAllString(sql, "$1")

	var stmts []string
	var err error
	if createIndexPattern.MatchString(sql) {
		stmts, err = rewriteCreateIndex(sql)
	} else {
		stmts, err = r.rewriteCreateTable(sql)
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(hash, stmts)
	return &RewriteResult{Statements: append([]string(nil), stmts...)}, nil
}

func rewriteCreateIndex(sql string) ([]string, error) {
	m := createIndexPattern.FindStringSubmatch(stripBackticks(sql))
	table := tableBaseName(m[3])
	clause := "ADD INDEX " + m[2] + " " + m[4]
	if strings.EqualFold(strings.TrimSpace(m[1]), "UNIQUE") {
		clause = "ADD UNIQUE INDEX " + m[2] + " " + m[4]
	}

	cmd, err := ParseAlterClause(table, clause)
	if err != nil {
		return nil, err
	}
	return []string{BuildCreateIndex(table, cmd.IndexName, cmd.IndexColumns, cmd.Unique)}, nil
}

func (r *CreateRewriter) rewriteCreateTable(sql string) ([]string, error) {
	stmt, err := r.parser.Parse(sql)
	if err != nil {
		if !createTablePattern.MatchString(sql) {
			return nil, ErrRuleNotApplicable
		}
		log.Debug().Err(err).Msg("Vitess rejected CREATE TABLE, using text rewrite")
		return rewriteCreateTableText(sql)
	}

	create, ok := stmt.(*sqlparser.CreateTable)
	if !ok {
		return nil, ErrRuleNotApplicable
	}
	if create.TableSpec == nil {
		return nil, fmt.Errorf("CREATE TABLE %s without column definitions is not supported", create.Table.Name.String())
	}

	table := create.Table.Name.String()
	spec := create.TableSpec

	autoIncrement := ""
	for _, col := range spec.Columns {
		if col.Type != nil && col.Type.Options != nil && col.Type.Options.Autoincrement {
			autoIncrement = col.Name.String()
		}
	}

	var items []string
	var indexes []string
	for _, idx := range spec.Indexes {
		if idx.Info == nil {
			continue
		}
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = c.Column.String()
		}
		if len(cols) == 0 {
			continue
		}

		if idx.Info.Type == sqlparser.IndexTypePrimary {
			if autoIncrement != "" && len(cols) == 1 && strings.EqualFold(cols[0], autoIncrement) {
				// AUTO_INCREMENT column becomes INTEGER PRIMARY KEY AUTOINCREMENT
				continue
			}
			if autoIncrement != "" {
				// SQLite AUTOINCREMENT needs a single-column key; keep the composite key
				for _, col := range spec.Columns {
					if col.Type != nil && col.Type.Options != nil {
						col.Type.Options.Autoincrement = false
					}
				}
				autoIncrement = ""
			}
			items = append(items, "PRIMARY KEY ("+strings.Join(cols, ", ")+")")
			continue
		}

		name := idx.Info.Name.String()
		if name == "" {
			name = cols[0]
		}
		indexes = append(indexes, BuildCreateIndex(table, name, cols, idx.Info.IsUnique()))
	}

	columns := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		name := col.Name.String()
		if col.Type != nil {
			col.Type.Charset = sqlparser.ColumnCharset{}
		}
		columns = append(columns, name+" "+MapCreateColumnDefinition(name, sqlparser.String(col.Type)))
	}

	for _, c := range spec.Constraints {
		items = append(items, enforcedPattern.ReplaceAllString(sqlparser.String(c), ""))
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if create.Temp {
		sb.WriteString("TEMPORARY ")
	}
	sb.WriteString("TABLE ")
	if create.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(append(columns, items...), ", "))
	sb.WriteString(")")

	return append([]string{sb.String()}, indexes...), nil
}

// rewriteCreateTableText handles CREATE TABLE statements the MySQL parser
// rejects by rewriting the definition item by item.
func rewriteCreateTableText(sql string) ([]string, error) {
	sql = stripBackticks(sql)
	m := createTablePattern.FindStringSubmatchIndex(sql)
	if m == nil {
		return nil, ErrRuleNotApplicable
	}
	table := tableBaseName(sql[m[6]:m[7]])
	open := m[1] - 1
	closeIdx := matchingParen(sql, open)
	if closeIdx < 0 {
		return nil, fmt.Errorf("unbalanced CREATE TABLE %s", table)
	}

	var columns, items, indexes []string
	autoIncrement := false
	for _, item := range splitTopLevel(sql[open+1:closeIdx], ',') {
		word, rest := leadingIdent(item)
		switch strings.ToUpper(word) {
		case "KEY", "INDEX", "UNIQUE", "FULLTEXT", "SPATIAL":
			cmd, err := ParseAlterClause(table, "ADD "+item)
			if err != nil {
				return nil, err
			}
			indexes = append(indexes, BuildCreateIndex(table, cmd.IndexName, cmd.IndexColumns, cmd.Unique))
		case "PRIMARY", "CONSTRAINT", "CHECK", "FOREIGN":
			items = append(items, item)
		default:
			mapped := MapCreateColumnDefinition(word, rest)
			if strings.HasSuffix(mapped, "AUTOINCREMENT") {
				autoIncrement = true
			}
			columns = append(columns, word+" "+mapped)
		}
	}

	if autoIncrement {
		// The AUTO_INCREMENT column already carries the primary key
		kept := items[:0]
		for _, it := range items {
			if !hasUnquoted(it, inlinePrimaryKey) {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	head := "CREATE "
	if m[2] >= 0 {
		head += "TEMPORARY "
	}
	head += "TABLE "
	if m[4] >= 0 {
		head += "IF NOT EXISTS "
	}
	create := head + table + " (" + strings.Join(append(columns, items...), ", ") + ")"
	return append([]string{create}, indexes...), nil
}
