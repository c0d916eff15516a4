package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/mylite/protocol/query/transform"
	rqlite "github.com/rqlite/sql"
	"github.com/rs/zerolog/log"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var dialect = goqu.Dialect("sqlite3")

const autoIncrementCacheSize = 1024

// autoIncrementCache maps XXH64 of a CREATE TABLE text to its
// AUTOINCREMENT column ("" when there is none).
var autoIncrementCache *lru.Cache[uint64, string]

func init() {
	var err error
	autoIncrementCache, err = lru.New[uint64, string](autoIncrementCacheSize)
	if err != nil {
		panic("failed to create autoincrement cache: " + err.Error())
	}
}

// Inspector reads schema information through a Querier. An Inspector
// bound to a transaction sees that transaction's uncommitted DDL.
type Inspector struct {
	q Querier
}

// NewInspector creates an Inspector reading through q
func NewInspector(q Querier) *Inspector {
	return &Inspector{q: q}
}

// DescribeTable returns the PRAGMA table_info rows of table in column order.
// A missing table yields no columns.
func (i *Inspector) DescribeTable(ctx context.Context, table string) ([]transform.ColumnInfo, error) {
	rows, err := i.q.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []transform.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			col     transform.ColumnInfo
			notNull int
			dflt    sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		col.NotNull = notNull != 0
		if dflt.Valid {
			d := dflt.String
			col.Default = &d
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// ObjectDefinitions returns the stored CREATE statements of table: the
// CREATE TABLE first, then its explicit indexes by name. Automatic indexes
// have no stored text and are skipped.
func (i *Inspector) ObjectDefinitions(ctx context.Context, table string) ([]string, error) {
	query, args, err := dialect.From("sqlite_master").
		Select("sql").
		Where(
			goqu.C("tbl_name").Eq(table),
			goqu.C("sql").IsNotNull(),
			goqu.C("type").In("table", "index"),
		).
		Order(goqu.L("CASE type WHEN 'table' THEN 0 ELSE 1 END").Asc(), goqu.C("name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}
	return i.strings(ctx, query, args...)
}

// ListTables returns user tables ordered by name, internal sqlite_ tables
// excluded.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	query, args, err := dialect.From("sqlite_master").
		Select("name").
		Where(
			goqu.C("type").Eq("table"),
			goqu.L("substr(name, 1, 7)").Neq("sqlite_"),
		).
		Order(goqu.C("name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}
	return i.strings(ctx, query, args...)
}

// CountRows returns SELECT COUNT(*) of table.
func (i *Inspector) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := i.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}

// ReadTableSchema implements transform.SchemaReader. It returns nil when
// table does not exist.
func (i *Inspector) ReadTableSchema(ctx context.Context, table string) (*transform.TableSchema, error) {
	defs, err := i.ObjectDefinitions(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 || !isCreateTable(defs[0]) {
		return nil, nil
	}

	cols, err := i.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}

	return &transform.TableSchema{
		Name:          table,
		CreateSQL:     defs[0],
		Columns:       cols,
		Indexes:       defs[1:],
		AutoIncrement: AutoIncrementColumn(defs[0]),
	}, nil
}

// DatabaseStats returns the number of user tables and page_count * page_size.
func (i *Inspector) DatabaseStats(ctx context.Context) (tables int, sizeBytes int64, err error) {
	names, err := i.ListTables(ctx)
	if err != nil {
		return 0, 0, err
	}
	var pageCount, pageSize int64
	if err := i.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, 0, err
	}
	if err := i.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, 0, err
	}
	return len(names), pageCount * pageSize, nil
}

func (i *Inspector) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := i.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AutoIncrementColumn returns the column declared INTEGER PRIMARY KEY
// AUTOINCREMENT in a stored CREATE TABLE, or "".
func AutoIncrementColumn(createSQL string) string {
	hash := xxhash.Sum64String(createSQL)
	if col, ok := autoIncrementCache.Get(hash); ok {
		return col
	}

	col := ""
	stmt, err := rqlite.NewParser(strings.NewReader(createSQL)).ParseStatement()
	if err != nil {
		log.Debug().Err(err).Msg("Unable to parse stored table definition, matching text")
		if m := autoIncrementText.FindStringSubmatch(createSQL); m != nil {
			col = strings.Trim(m[1], "`\"[]")
		}
	} else if create, ok := stmt.(*rqlite.CreateTableStatement); ok {
	columns:
		for _, c := range create.Columns {
			for _, cons := range c.Constraints {
				if pk, ok := cons.(*rqlite.PrimaryKeyConstraint); ok && pk.Autoincrement != (rqlite.Pos{}) {
					col = c.Name.Name
					break columns
				}
			}
		}
	}

	autoIncrementCache.Add(hash, col)
	return col
}

var autoIncrementText = regexp.MustCompile(`(?i)([\w"\x60\[\]]+)\s+INTEGER\b[^,]*?\bPRIMARY\s+KEY\b[^,]*?\bAUTOINCREMENT\b`)

func isCreateTable(sql string) bool {
	s := strings.TrimSpace(sql)
	return len(s) >= 12 && strings.EqualFold(s[:12], "CREATE TABLE")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
