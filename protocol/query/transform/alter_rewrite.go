package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	columnPositionPattern = regexp.MustCompile(`(?i)\s+(FIRST|AFTER\s+\S+)\s*$`)
	inlinePrimaryKey      = regexp.MustCompile(`(?i)\s*\bPRIMARY\s+KEY\b(\s+(ASC|DESC))?(\s+ON\s+CONFLICT\s+\w+)?(\s+AUTOINCREMENT)?`)
	storedIndexPattern    = regexp.MustCompile(`(?is)^\s*CREATE\s+(UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?(\S+)\s+ON\s+[^\s(]+\s*(\(.*\))\s*$`)
	sqliteAutoIncrement   = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)
	constraintKeywords    = []string{"CONSTRAINT", "PRIMARY", "UNIQUE", "CHECK", "FOREIGN"}
)

// AlterRewriter turns MySQL ALTER TABLE statements into SQLite statements.
type AlterRewriter struct{}

// NewAlterRewriter creates an AlterRewriter
func NewAlterRewriter() *AlterRewriter {
	return &AlterRewriter{}
}

// Rewrite rewrites the first clause of an ALTER TABLE statement. Remaining
// clauses are returned in RewriteResult.Recursion. schema is only consulted
// for changes that need the table-recreation protocol.
func (r *AlterRewriter) Rewrite(ctx context.Context, sql string, schema SchemaReader) (*RewriteResult, error) {
	table, clauses, err := SplitAlter(sql)
	if err != nil {
		return nil, err
	}

	cmd, err := ParseAlterClause(table, clauses[0])
	if err != nil {
		return nil, err
	}

	result, err := r.RewriteCommand(ctx, cmd, schema)
	if err != nil {
		return nil, err
	}

	if len(clauses) > 1 {
		result.Recursion = "ALTER TABLE " + table + " " + strings.Join(clauses[1:], ", ")
	}
	return result, nil
}

// RewriteCommand dispatches a parsed clause to its handler.
func (r *AlterRewriter) RewriteCommand(ctx context.Context, cmd *AlterCommand, schema SchemaReader) (*RewriteResult, error) {
	log.Debug().
		Str("table", cmd.Table).
		Str("subcommand", cmd.SubCommand.String()).
		Msg("Rewriting ALTER TABLE clause")

	if cmd.SubCommand.RequiresRecreation() {
		if schema == nil {
			return nil, fmt.Errorf("%s on %s requires schema access", cmd.SubCommand, cmd.Table)
		}
		return r.recreate(ctx, cmd, schema)
	}

	var stmt string
	switch cmd.SubCommand {
	case AlterAddColumn:
		def := columnPositionPattern.ReplaceAllString(cmd.Definition, "")
		stmt = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", cmd.Table, cmd.Column, AddColumnDefinition(cmd.Column, def))
	case AlterRenameTable:
		return r.renameTable(ctx, cmd, schema)
	case AlterAddIndex:
		stmt = BuildCreateIndex(cmd.Table, cmd.IndexName, cmd.IndexColumns, cmd.Unique)
	case AlterDropIndex:
		stmt = "DROP INDEX IF EXISTS " + SQLiteIndexName(cmd.Table, cmd.IndexName)
	case AlterDropColumn:
		return r.dropColumn(ctx, cmd, schema)
	case AlterRenameColumn:
		stmt = fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", cmd.Table, cmd.Column, cmd.NewColumn)
	default:
		return nil, fmt.Errorf("unsupported alter subcommand %s", cmd.SubCommand)
	}

	return &RewriteResult{Statements: []string{stmt}}, nil
}

// renameTable renames the table and moves its indexes to names carrying
// the new table prefix.
func (r *AlterRewriter) renameTable(ctx context.Context, cmd *AlterCommand, schema SchemaReader) (*RewriteResult, error) {
	stmts := []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", cmd.Table, cmd.NewColumn)}
	if schema == nil {
		return &RewriteResult{Statements: stmts}, nil
	}

	ts, err := schema.ReadTableSchema(ctx, cmd.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", cmd.Table, err)
	}
	if ts != nil {
		for _, idx := range ts.Indexes {
			m := storedIndexPattern.FindStringSubmatch(idx)
			if m == nil {
				continue
			}
			name := unquoteIdent(m[2])
			renamed := SQLiteIndexName(cmd.NewColumn, MySQLIndexName(cmd.Table, name))
			if strings.EqualFold(renamed, name) {
				continue
			}
			create := "CREATE "
			if m[1] != "" {
				create += "UNIQUE "
			}
			create += "INDEX IF NOT EXISTS " + renamed + " ON " + cmd.NewColumn + " " + strings.TrimSpace(m[3])
			stmts = append(stmts, "DROP INDEX IF EXISTS "+name, create)
		}
	}
	return &RewriteResult{Statements: stmts}, nil
}

// dropColumn drops a column the way MySQL does: indexes lose the column
// and are dropped once no column is left. SQLite refuses to drop an
// indexed column, so affected indexes go first and are rebuilt after.
func (r *AlterRewriter) dropColumn(ctx context.Context, cmd *AlterCommand, schema SchemaReader) (*RewriteResult, error) {
	drop := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", cmd.Table, cmd.Column)
	if schema == nil {
		return &RewriteResult{Statements: []string{drop}}, nil
	}

	ts, err := schema.ReadTableSchema(ctx, cmd.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", cmd.Table, err)
	}

	var before, after []string
	if ts != nil {
		for _, idx := range ts.Indexes {
			m := storedIndexPattern.FindStringSubmatch(idx)
			if m == nil {
				continue
			}
			inner := strings.TrimSpace(m[3])
			columns := splitTopLevel(inner[1:len(inner)-1], ',')
			var kept []string
			for _, c := range columns {
				if name, _ := leadingIdent(c); !strings.EqualFold(name, cmd.Column) {
					kept = append(kept, c)
				}
			}
			if len(kept) == len(columns) {
				continue
			}

			name := unquoteIdent(m[2])
			before = append(before, "DROP INDEX IF EXISTS "+name)
			if len(kept) > 0 {
				after = append(after, BuildCreateIndex(cmd.Table, MySQLIndexName(cmd.Table, name), kept, m[1] != ""))
			}
		}
	}

	stmts := append(append(before, drop), after...)
	return &RewriteResult{Statements: stmts}, nil
}

// BuildCreateIndex generates a SQLite CREATE INDEX statement. The index
// name is prefixed with the table name to keep it unique database-wide.
func BuildCreateIndex(table, index string, columns []string, unique bool) string {
	var sb strings.Builder

	sb.WriteString("CREATE ")
	if unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")
	sb.WriteString(SQLiteIndexName(table, index))
	sb.WriteString(" ON ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(")")

	return sb.String()
}

// recreate implements changes SQLite cannot ALTER in place: build a copy
// with the new definition, copy rows, swap it in, restore indexes.
func (r *AlterRewriter) recreate(ctx context.Context, cmd *AlterCommand, schema SchemaReader) (*RewriteResult, error) {
	ts, err := schema.ReadTableSchema(ctx, cmd.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", cmd.Table, err)
	}
	if ts == nil || ts.CreateSQL == "" {
		return nil, fmt.Errorf("table '%s' doesn't exist", cmd.Table)
	}

	def, err := parseTableDefinition(ts.CreateSQL)
	if err != nil {
		return nil, err
	}
	original := def.body()

	renamed := false
	switch cmd.SubCommand {
	case AlterModifyColumn:
		err = def.modifyColumn(cmd.Column, cmd.Column, cmd.Definition)
	case AlterChangeColumn:
		err = def.modifyColumn(cmd.Column, cmd.NewColumn, cmd.Definition)
		renamed = !strings.EqualFold(cmd.Column, cmd.NewColumn)
	case AlterColumnDefault:
		err = def.alterDefault(cmd.Column, cmd.Default, cmd.DropDefault)
	case AlterAddPrimaryKey:
		err = def.addPrimaryKey(cmd.IndexColumns)
	case AlterDropPrimaryKey:
		err = def.dropPrimaryKey(cmd.Table)
	}
	if err != nil {
		return nil, err
	}

	body := def.body()
	if body == original && !renamed {
		log.Debug().Str("table", cmd.Table).Msg("ALTER TABLE leaves definition unchanged")
		return &RewriteResult{Statements: []string{NoOpStatement}, NoOp: true}, nil
	}

	temp := TempTablePrefix + cmd.Table
	create := "CREATE TABLE " + temp + " (" + body + ")"
	if def.suffix != "" {
		create += " " + def.suffix
	}

	copyStmt := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", temp, cmd.Table)
	if renamed {
		oldCols := def.columnNames()
		newCols := make([]string, len(oldCols))
		for i, c := range oldCols {
			newCols[i] = c
			if strings.EqualFold(c, cmd.NewColumn) {
				oldCols[i] = cmd.Column
			}
		}
		copyStmt = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			temp, strings.Join(newCols, ", "), strings.Join(oldCols, ", "), cmd.Table)
	}

	stmts := []string{
		create,
		copyStmt,
		"DROP TABLE IF EXISTS " + cmd.Table,
		"ALTER TABLE " + temp + " RENAME TO " + cmd.Table,
	}
	for _, idx := range ts.Indexes {
		if renamed {
			idx = renameIndexColumn(idx, cmd.Column, cmd.NewColumn)
		}
		stmts = append(stmts, idx)
	}

	return &RewriteResult{
		Statements: stmts,
		Recreate:   &Recreation{Table: cmd.Table, TempTable: temp, DropStep: 2},
	}, nil
}

// tableDefinition is a stored CREATE TABLE split into top-level items.
type tableDefinition struct {
	items  []defItem
	suffix string // WITHOUT ROWID, STRICT
}

type defItem struct {
	text   string
	column string // empty for table constraints
}

func parseTableDefinition(createSQL string) (*tableDefinition, error) {
	open := firstUnquoted(createSQL, '(')
	if open < 0 {
		return nil, fmt.Errorf("malformed table definition: %s", createSQL)
	}
	closeIdx := matchingParen(createSQL, open)
	if closeIdx < 0 {
		return nil, fmt.Errorf("unbalanced table definition: %s", createSQL)
	}

	def := &tableDefinition{suffix: strings.TrimSpace(createSQL[closeIdx+1:])}
	for _, item := range splitTopLevel(createSQL[open+1:closeIdx], ',') {
		name, _ := leadingIdent(item)
		if isTableConstraint(item) {
			name = ""
		}
		def.items = append(def.items, defItem{text: item, column: name})
	}
	return def, nil
}

func (d *tableDefinition) body() string {
	parts := make([]string, len(d.items))
	for i, it := range d.items {
		parts[i] = it.text
	}
	return strings.Join(parts, ", ")
}

func (d *tableDefinition) columnNames() []string {
	var names []string
	for _, it := range d.items {
		if it.column != "" {
			names = append(names, it.column)
		}
	}
	return names
}

func (d *tableDefinition) columnIndex(name string) int {
	for i, it := range d.items {
		if it.column != "" && strings.EqualFold(it.column, name) {
			return i
		}
	}
	return -1
}

// primaryKeyItem returns the index of a table-level PRIMARY KEY constraint.
func (d *tableDefinition) primaryKeyItem() int {
	for i, it := range d.items {
		if it.column == "" && hasUnquoted(it.text, inlinePrimaryKey) {
			return i
		}
	}
	return -1
}

func (d *tableDefinition) hasPrimaryKey() bool {
	for _, it := range d.items {
		if hasUnquoted(it.text, inlinePrimaryKey) {
			return true
		}
	}
	return false
}

func (d *tableDefinition) modifyColumn(old, name, definition string) error {
	i := d.columnIndex(old)
	if i < 0 {
		return fmt.Errorf("unknown column '%s'", old)
	}

	definition = columnPositionPattern.ReplaceAllString(definition, "")
	mapped := MapCreateColumnDefinition(name, definition)

	// MODIFY never drops the primary key; the key is not a column attribute in MySQL
	if hasUnquoted(d.items[i].text, inlinePrimaryKey) && !hasUnquoted(mapped, inlinePrimaryKey) {
		mapped += " PRIMARY KEY"
	}

	if hasUnquoted(mapped, inlinePrimaryKey) {
		if pk := d.primaryKeyItem(); pk >= 0 {
			cols := constraintColumns(d.items[pk].text)
			if len(cols) != 1 || !strings.EqualFold(cols[0], old) {
				return fmt.Errorf("multiple primary key defined")
			}
			d.items = append(d.items[:pk], d.items[pk+1:]...)
			if pk < i {
				i--
			}
		}
	}

	d.items[i] = defItem{text: name + " " + mapped, column: name}

	if !strings.EqualFold(old, name) {
		for j, it := range d.items {
			if it.column == "" {
				d.items[j].text = renameIdent(it.text, old, name)
			}
		}
	}
	return nil
}

func (d *tableDefinition) alterDefault(column, value string, drop bool) error {
	i := d.columnIndex(column)
	if i < 0 {
		return fmt.Errorf("unknown column '%s'", column)
	}

	name, rest := leadingIdent(d.items[i].text)
	rest = removeDefault(rest)
	if !drop {
		rest = strings.TrimSpace(rest + " " + MapCreateColumnDefinition(column, "DEFAULT "+value))
	}
	d.items[i].text = collapseSpaces(name + " " + rest)
	return nil
}

func (d *tableDefinition) addPrimaryKey(columns []string) error {
	if d.hasPrimaryKey() {
		return fmt.Errorf("multiple primary key defined")
	}
	for _, c := range columns {
		if d.columnIndex(c) < 0 {
			return fmt.Errorf("key column '%s' doesn't exist in table", c)
		}
	}
	d.items = append(d.items, defItem{text: "PRIMARY KEY (" + strings.Join(columns, ", ") + ")"})
	return nil
}

func (d *tableDefinition) dropPrimaryKey(table string) error {
	for _, it := range d.items {
		if it.column != "" && hasUnquoted(it.text, sqliteAutoIncrement) {
			return &DefinitionError{
				Table:   table,
				Code:    1075,
				Message: "Incorrect table definition; there can be only one auto column and it must be defined as a key",
			}
		}
	}

	kept := d.items[:0]
	for _, it := range d.items {
		if it.column == "" && hasUnquoted(it.text, inlinePrimaryKey) {
			continue
		}
		if it.column != "" {
			it.text = collapseSpaces(mapUnquoted(it.text, func(part string) string {
				return inlinePrimaryKey.ReplaceAllString(part, "")
			}))
		}
		kept = append(kept, it)
	}
	d.items = kept
	return nil
}

// isTableConstraint reports whether a definition item is a table
// constraint rather than a column.
func isTableConstraint(item string) bool {
	if item == "" || item[0] == '"' || item[0] == '`' || item[0] == '[' {
		return false
	}
	word, _ := leadingIdent(item)
	for _, kw := range constraintKeywords {
		if strings.EqualFold(word, kw) {
			return true
		}
	}
	return false
}

// leadingIdent splits the first identifier off a definition item.
func leadingIdent(item string) (string, string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", ""
	}
	var end int
	switch item[0] {
	case '"', '`':
		end = closingQuote(item, 0)
	case '[':
		end = strings.IndexByte(item, ']') + 1
		if end == 0 {
			end = len(item)
		}
		return item[1 : end-1], strings.TrimSpace(item[end:])
	default:
		end = strings.IndexFunc(item, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\n' || r == '('
		})
		if end < 0 {
			end = len(item)
		}
	}
	return unquoteIdent(item[:end]), strings.TrimSpace(item[end:])
}

// constraintColumns extracts the column list of a table constraint.
func constraintColumns(item string) []string {
	open := firstUnquoted(item, '(')
	if open < 0 {
		return nil
	}
	closeIdx := matchingParen(item, open)
	if closeIdx < 0 {
		return nil
	}
	var cols []string
	for _, c := range splitTopLevel(item[open+1:closeIdx], ',') {
		name, _ := leadingIdent(c)
		cols = append(cols, name)
	}
	return cols
}

// removeDefault strips a DEFAULT clause, value included, from a column definition.
func removeDefault(def string) string {
	toks := lexAlterClause(def)
	for i, t := range toks {
		if !isKeyword(t, "DEFAULT") || i+1 >= len(toks) {
			continue
		}
		next := toks[i+1]
		end := next.end
		if next.kind == tokPunct && next.text == "(" {
			if closeIdx := matchingParen(def, next.start); closeIdx >= 0 {
				end = closeIdx + 1
			}
		}
		return collapseSpaces(def[:t.start] + " " + def[end:])
	}
	return def
}

// renameIdent renames whole-word references to old outside string literals.
func renameIdent(s, old, name string) string {
	word := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(old) + `\b`)
	var sb strings.Builder
	for _, seg := range splitQuoted(s) {
		switch {
		case !seg.quoted:
			sb.WriteString(word.ReplaceAllString(seg.text, name))
		case seg.text[0] != '\'' && strings.EqualFold(unquoteIdent(seg.text), old):
			sb.WriteString(seg.text[:1] + name + seg.text[len(seg.text)-1:])
		default:
			sb.WriteString(seg.text)
		}
	}
	return sb.String()
}

// renameIndexColumn renames a column inside the column list of a CREATE INDEX.
func renameIndexColumn(indexSQL, old, name string) string {
	open := firstUnquoted(indexSQL, '(')
	if open < 0 {
		return indexSQL
	}
	closeIdx := matchingParen(indexSQL, open)
	if closeIdx < 0 {
		return indexSQL
	}
	return indexSQL[:open+1] + renameIdent(indexSQL[open+1:closeIdx], old, name) + indexSQL[closeIdx:]
}

// firstUnquoted returns the index of the first c outside quotes, or -1.
func firstUnquoted(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = closingQuote(s, i) - 1
		case c:
			return i
		}
	}
	return -1
}
