package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// AlterSubCommand identifies the single action of one ALTER TABLE clause.
type AlterSubCommand int

const (
	AlterUnknown AlterSubCommand = iota
	AlterAddColumn
	AlterRenameTable
	AlterAddIndex
	AlterDropIndex
	AlterAddPrimaryKey
	AlterDropPrimaryKey
	AlterModifyColumn
	AlterChangeColumn
	AlterColumnDefault
	AlterDropColumn
	AlterRenameColumn
)

var subCommandNames = map[AlterSubCommand]string{
	AlterUnknown:        "unknown",
	AlterAddColumn:      "add_column",
	AlterRenameTable:    "rename_table",
	AlterAddIndex:       "add_index",
	AlterDropIndex:      "drop_index",
	AlterAddPrimaryKey:  "add_primary_key",
	AlterDropPrimaryKey: "drop_primary_key",
	AlterModifyColumn:   "modify_column",
	AlterChangeColumn:   "change_column",
	AlterColumnDefault:  "alter_column_default",
	AlterDropColumn:     "drop_column",
	AlterRenameColumn:   "rename_column",
}

func (c AlterSubCommand) String() string {
	if n, ok := subCommandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("subcommand(%d)", int(c))
}

// RequiresRecreation reports whether SQLite can only express the change by
// rebuilding the table.
func (c AlterSubCommand) RequiresRecreation() bool {
	switch c {
	case AlterAddPrimaryKey, AlterDropPrimaryKey, AlterModifyColumn, AlterChangeColumn, AlterColumnDefault:
		return true
	}
	return false
}

// AlterCommand is one parsed ALTER TABLE clause.
type AlterCommand struct {
	Table        string
	SubCommand   AlterSubCommand
	Column       string   // target column (old name for CHANGE and RENAME COLUMN)
	NewColumn    string   // CHANGE / RENAME COLUMN new name, RENAME TO new table name
	Definition   string   // raw MySQL column definition, type included
	IndexName    string   // as written by the user, without table prefix
	IndexColumns []string // index or primary key columns, prefix lengths stripped
	Unique       bool
	Default      string // literal for ALTER COLUMN ... SET DEFAULT
	DropDefault  bool
}

// AlterParseError reports an ALTER TABLE clause outside the supported grammar.
type AlterParseError struct {
	Table  string
	Clause string
	Pos    int
	Reason string
}

func (e *AlterParseError) Error() string {
	return fmt.Sprintf("cannot parse ALTER TABLE %s clause %q at offset %d: %s", e.Table, e.Clause, e.Pos, e.Reason)
}

// DefinitionError is an ALTER TABLE MySQL itself would refuse. Unlike a
// clause that cannot be parsed, it is reported to the caller.
type DefinitionError struct {
	Table   string
	Code    uint16
	Message string
}

func (e *DefinitionError) Error() string {
	return e.Message
}

// MySQLCode reports the MySQL error number for the rejected definition.
func (e *DefinitionError) MySQLCode() (uint16, string) {
	return e.Code, "42000"
}

var alterHeadPattern = regexp.MustCompile(`(?is)^\s*ALTER\s+(?:ONLINE\s+|OFFLINE\s+)?(?:IGNORE\s+)?TABLE\s+([^\s(]+)\s*(.*?)\s*;?\s*$`)

// SplitAlter strips identifier quoting from an ALTER TABLE statement and
// returns the table name plus its top-level comma separated clauses.
func SplitAlter(sql string) (string, []string, error) {
	m := alterHeadPattern.FindStringSubmatch(stripBackticks(sql))
	if m == nil {
		return "", nil, &AlterParseError{Clause: sql, Reason: "not an ALTER TABLE statement"}
	}

	table := tableBaseName(m[1])
	clauses := splitTopLevel(m[2], ',')
	if len(clauses) == 0 {
		return table, nil, &AlterParseError{Table: table, Clause: m[2], Reason: "no alter specification"}
	}
	return table, clauses, nil
}

// tableBaseName drops a leading schema qualifier: db.t -> t
func tableBaseName(name string) string {
	name = unquoteIdent(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return unquoteIdent(name[i+1:])
	}
	return name
}

type alterTokenKind int

const (
	tokWord alterTokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct
)

type alterToken struct {
	kind  alterTokenKind
	text  string
	start int
	end   int
}

// lexAlterClause splits a clause into words, identifiers, literals and punctuation.
func lexAlterClause(clause string) []alterToken {
	var toks []alterToken
	i := 0
	for i < len(clause) {
		c := clause[i]
		switch {
		case isSpace(c):
			i++
		case c == '\'':
			end := closingQuote(clause, i)
			toks = append(toks, alterToken{kind: tokString, text: clause[i:end], start: i, end: end})
			i = end
		case c == '"' || c == '`':
			end := closingQuote(clause, i)
			toks = append(toks, alterToken{kind: tokQuotedIdent, text: unquoteIdent(clause[i:end]), start: i, end: end})
			i = end
		case c == '(' || c == ')' || c == ',' || c == '=':
			toks = append(toks, alterToken{kind: tokPunct, text: string(c), start: i, end: i + 1})
			i++
		case c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.':
			j := i + 1
			for j < len(clause) && (isWordByte(clause[j]) || clause[j] == '.') {
				j++
			}
			toks = append(toks, alterToken{kind: tokNumber, text: clause[i:j], start: i, end: j})
			i = j
		default:
			j := i
			for j < len(clause) && isWordByte(clause[j]) {
				j++
			}
			if j == i {
				j = i + 1
			}
			toks = append(toks, alterToken{kind: tokWord, text: clause[i:j], start: i, end: j})
			i = j
		}
	}
	return toks
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

// alterParser is a recursive-descent parser over the closed ALTER TABLE
// clause grammar.
type alterParser struct {
	table  string
	clause string
	toks   []alterToken
	pos    int
}

// ParseAlterClause parses one ALTER TABLE clause of table.
func ParseAlterClause(table, clause string) (*AlterCommand, error) {
	p := &alterParser{table: table, clause: clause, toks: lexAlterClause(clause)}
	cmd, err := p.parse()
	if err != nil {
		return nil, err
	}
	cmd.Table = table
	return cmd, nil
}

func (p *alterParser) fail(reason string) error {
	off := len(p.clause)
	if p.pos < len(p.toks) {
		off = p.toks[p.pos].start
	}
	return &AlterParseError{Table: p.table, Clause: p.clause, Pos: off, Reason: reason}
}

func (p *alterParser) peek() (alterToken, bool) {
	if p.pos >= len(p.toks) {
		return alterToken{}, false
	}
	return p.toks[p.pos], true
}

// accept consumes the next token when it is one of the given keywords.
func (p *alterParser) accept(keywords ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokWord {
		return "", false
	}
	for _, kw := range keywords {
		if strings.EqualFold(t.text, kw) {
			p.pos++
			return strings.ToUpper(kw), true
		}
	}
	return "", false
}

func (p *alterParser) expect(keyword string) error {
	if _, ok := p.accept(keyword); !ok {
		return p.fail("expected " + keyword)
	}
	return nil
}

func (p *alterParser) ident() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", p.fail("expected identifier")
	}
	if t.kind != tokWord && t.kind != tokQuotedIdent {
		return "", p.fail("expected identifier")
	}
	p.pos++
	return t.text, nil
}

// rest returns the raw clause text from the current token on.
func (p *alterParser) rest() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	s := strings.TrimSpace(p.clause[p.toks[p.pos].start:])
	p.pos = len(p.toks)
	return s
}

func (p *alterParser) done() error {
	if p.pos < len(p.toks) {
		return p.fail("unexpected trailing input")
	}
	return nil
}

func (p *alterParser) parse() (*AlterCommand, error) {
	verb, ok := p.accept("ADD", "DROP", "RENAME", "MODIFY", "CHANGE", "ALTER")
	if !ok {
		return nil, p.fail("unsupported alter specification")
	}

	switch verb {
	case "ADD":
		return p.parseAdd()
	case "DROP":
		return p.parseDrop()
	case "RENAME":
		return p.parseRename()
	case "MODIFY":
		return p.parseModify()
	case "CHANGE":
		return p.parseChange()
	default:
		return p.parseAlterColumn()
	}
}

func (p *alterParser) parseAdd() (*AlterCommand, error) {
	if _, ok := p.accept("COLUMN"); ok {
		return p.columnDefinition(AlterAddColumn)
	}

	if _, ok := p.accept("CONSTRAINT"); ok {
		// Optional constraint symbol before PRIMARY KEY / UNIQUE
		if t, ok := p.peek(); ok && !isKeyword(t, "PRIMARY", "UNIQUE") {
			p.pos++
		}
	}

	if _, ok := p.accept("PRIMARY"); ok {
		if err := p.expect("KEY"); err != nil {
			return nil, err
		}
		cols, err := p.indexColumns()
		if err != nil {
			return nil, err
		}
		return &AlterCommand{SubCommand: AlterAddPrimaryKey, IndexColumns: cols}, p.done()
	}

	if _, ok := p.accept("UNIQUE"); ok {
		p.accept("INDEX", "KEY")
		return p.indexDefinition(true)
	}

	if _, ok := p.accept("FULLTEXT", "SPATIAL"); ok {
		p.accept("INDEX", "KEY")
		return p.indexDefinition(false)
	}

	if _, ok := p.accept("INDEX", "KEY"); ok {
		return p.indexDefinition(false)
	}

	if t, ok := p.peek(); ok && isKeyword(t, "FOREIGN", "CHECK", "PARTITION") {
		return nil, p.fail("unsupported ADD " + strings.ToUpper(t.text))
	}

	// Bare column definition: ADD name type ...
	return p.columnDefinition(AlterAddColumn)
}

func (p *alterParser) indexDefinition(unique bool) (*AlterCommand, error) {
	cmd := &AlterCommand{SubCommand: AlterAddIndex, Unique: unique}
	if t, ok := p.peek(); ok && (t.kind == tokWord || t.kind == tokQuotedIdent) && !isKeyword(t, "USING") {
		cmd.IndexName = t.text
		p.pos++
	}
	if _, ok := p.accept("USING"); ok {
		if _, err := p.ident(); err != nil {
			return nil, err
		}
	}

	cols, err := p.indexColumns()
	if err != nil {
		return nil, err
	}
	cmd.IndexColumns = cols
	if cmd.IndexName == "" {
		cmd.IndexName = cols[0]
	}

	// Trailing index options (USING BTREE, COMMENT '...') carry no meaning for SQLite
	p.pos = len(p.toks)
	return cmd, nil
}

// indexColumns parses "(col[(len)] [ASC|DESC], ...)".
func (p *alterParser) indexColumns() ([]string, error) {
	t, ok := p.peek()
	if !ok || t.kind != tokPunct || t.text != "(" {
		return nil, p.fail("expected column list")
	}
	p.pos++

	var cols []string
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)

		if t, ok := p.peek(); ok && t.kind == tokPunct && t.text == "(" {
			// prefix length: col(191)
			p.pos++
			if t, ok := p.peek(); !ok || t.kind != tokNumber {
				return nil, p.fail("expected prefix length")
			}
			p.pos++
			if t, ok := p.peek(); !ok || t.text != ")" {
				return nil, p.fail("expected )")
			}
			p.pos++
		}
		p.accept("ASC", "DESC")

		t, ok := p.peek()
		if !ok {
			return nil, p.fail("unterminated column list")
		}
		p.pos++
		if t.text == ")" {
			return cols, nil
		}
		if t.text != "," {
			return nil, p.fail("expected , or )")
		}
	}
}

func (p *alterParser) columnDefinition(sub AlterSubCommand) (*AlterCommand, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	def := p.rest()
	if def == "" {
		return nil, p.fail("missing column definition")
	}
	return &AlterCommand{SubCommand: sub, Column: name, Definition: def}, nil
}

func (p *alterParser) parseDrop() (*AlterCommand, error) {
	if _, ok := p.accept("PRIMARY"); ok {
		if err := p.expect("KEY"); err != nil {
			return nil, err
		}
		return &AlterCommand{SubCommand: AlterDropPrimaryKey}, p.done()
	}

	if _, ok := p.accept("INDEX", "KEY"); ok {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &AlterCommand{SubCommand: AlterDropIndex, IndexName: name}, p.done()
	}

	if t, ok := p.peek(); ok && isKeyword(t, "FOREIGN", "CHECK", "CONSTRAINT", "PARTITION") {
		return nil, p.fail("unsupported DROP " + strings.ToUpper(t.text))
	}

	p.accept("COLUMN")
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	// RESTRICT / CASCADE are accepted and ignored, as MySQL does
	p.accept("RESTRICT", "CASCADE")
	return &AlterCommand{SubCommand: AlterDropColumn, Column: name}, p.done()
}

func (p *alterParser) parseRename() (*AlterCommand, error) {
	if _, ok := p.accept("COLUMN"); ok {
		old, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expect("TO"); err != nil {
			return nil, err
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &AlterCommand{SubCommand: AlterRenameColumn, Column: old, NewColumn: name}, p.done()
	}

	if t, ok := p.peek(); ok && isKeyword(t, "INDEX", "KEY") {
		return nil, p.fail("unsupported RENAME INDEX")
	}

	p.accept("TO", "AS")
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &AlterCommand{SubCommand: AlterRenameTable, NewColumn: tableBaseName(name)}, p.done()
}

func (p *alterParser) parseModify() (*AlterCommand, error) {
	p.accept("COLUMN")
	return p.columnDefinition(AlterModifyColumn)
}

func (p *alterParser) parseChange() (*AlterCommand, error) {
	p.accept("COLUMN")
	old, err := p.ident()
	if err != nil {
		return nil, err
	}
	cmd, err := p.columnDefinition(AlterChangeColumn)
	if err != nil {
		return nil, err
	}
	cmd.NewColumn = cmd.Column
	cmd.Column = old
	return cmd, nil
}

func (p *alterParser) parseAlterColumn() (*AlterCommand, error) {
	p.accept("COLUMN")
	name, err := p.ident()
	if err != nil {
		return nil, err
	}

	cmd := &AlterCommand{SubCommand: AlterColumnDefault, Column: name}
	if _, ok := p.accept("SET"); ok {
		if err := p.expect("DEFAULT"); err != nil {
			return nil, err
		}
		value := p.rest()
		if value == "" {
			return nil, p.fail("missing default value")
		}
		cmd.Default = value
		return cmd, nil
	}

	if _, ok := p.accept("DROP"); ok {
		if err := p.expect("DEFAULT"); err != nil {
			return nil, err
		}
		cmd.DropDefault = true
		return cmd, p.done()
	}

	return nil, p.fail("expected SET DEFAULT or DROP DEFAULT")
}

func isKeyword(t alterToken, keywords ...string) bool {
	if t.kind != tokWord {
		return false
	}
	for _, kw := range keywords {
		if strings.EqualFold(t.text, kw) {
			return true
		}
	}
	return false
}
